package core

import (
	"strings"
)

// FieldAliases maps deprecated or legacy field names to their canonical
// logical field name. Aliases are never resolved silently: the validator
// reports them and offers a corrected query.
var FieldAliases = map[string]string{
	// Addressing
	"src_ip":    "source_ip",
	"srcip":     "source_ip",
	"src":       "source_ip",
	"dst_ip":    "destination_ip",
	"dstip":     "destination_ip",
	"dest_ip":   "destination_ip",
	"dst":       "destination_ip",
	"src_port":  "source_port",
	"sport":     "source_port",
	"dst_port":  "destination_port",
	"dport":     "destination_port",
	"proto":     "protocol",
	"device_ip": "device.ip",

	// Device identity
	"mac_address": "mac",
	"hostname":    "device_name",
	"host":        "device_name",

	// Misc
	"ts":   "timestamp",
	"time": "timestamp",
	"app":  "application",
}

// ResolveFieldAlias returns the canonical name for a deprecated alias.
// The boolean is false when fieldName is not an alias.
func ResolveFieldAlias(fieldName string) (string, bool) {
	canonical, ok := FieldAliases[strings.ToLower(fieldName)]
	return canonical, ok
}

// ResolveFieldName returns the canonical name for fieldName, or fieldName
// itself if it is not an alias
func ResolveFieldName(fieldName string) string {
	if canonical, ok := ResolveFieldAlias(fieldName); ok {
		return canonical
	}
	return fieldName
}
