package core

import (
	"fmt"
	"strings"
)

// EntityType identifies a record category with its own field schema
type EntityType string

const (
	// EntityFlows are network flow records
	EntityFlows EntityType = "flows"
	// EntityAlarms are security alarms raised by the box
	EntityAlarms EntityType = "alarms"
	// EntityRules are block/allow rules
	EntityRules EntityType = "rules"
	// EntityDevices are devices known to the network
	EntityDevices EntityType = "devices"
	// EntityTargetLists are named lists of domains/IPs used by rules
	EntityTargetLists EntityType = "target_lists"
)

// AllEntityTypes lists every entity type in declaration order.
// Declaration order is the deterministic tie-break wherever two entity
// types compete (inference, suggestions).
var AllEntityTypes = []EntityType{
	EntityFlows,
	EntityAlarms,
	EntityRules,
	EntityDevices,
	EntityTargetLists,
}

// String returns the string representation
func (t EntityType) String() string {
	return string(t)
}

// IsValid checks if the entity type is one of the known types
func (t EntityType) IsValid() bool {
	switch t {
	case EntityFlows, EntityAlarms, EntityRules, EntityDevices, EntityTargetLists:
		return true
	default:
		return false
	}
}

// order returns the declaration index of the entity type, or len(AllEntityTypes)
func (t EntityType) order() int {
	for i, et := range AllEntityTypes {
		if et == t {
			return i
		}
	}
	return len(AllEntityTypes)
}

// Less orders entity types by declaration order
func (t EntityType) Less(other EntityType) bool {
	return t.order() < other.order()
}

// ParseEntityType accepts the canonical names plus singular and dashed forms
// ("flow", "target-list", "TargetLists").
func ParseEntityType(s string) (EntityType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")

	switch norm {
	case "flows", "flow":
		return EntityFlows, nil
	case "alarms", "alarm":
		return EntityAlarms, nil
	case "rules", "rule":
		return EntityRules, nil
	case "devices", "device":
		return EntityDevices, nil
	case "target_lists", "target_list", "targetlists", "targetlist":
		return EntityTargetLists, nil
	}
	return "", fmt.Errorf("unknown entity type %q (valid: %s)", s, joinEntityTypes(AllEntityTypes))
}

func joinEntityTypes(types []EntityType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
