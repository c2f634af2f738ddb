package core

import "sync"

func textField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeString, Class: MatchText, Paths: paths}
}

func exactField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeString, Class: MatchExact, Paths: paths}
}

func ipField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeString, Class: MatchIP, Paths: paths}
}

func geoField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeString, Class: MatchGeo, Paths: paths}
}

func numberField(name string, class MatchClass, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeNumber, Class: class, Paths: paths}
}

func bytesField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeNumber, Class: MatchNumeric, Paths: paths, Units: ByteUnits}
}

func durationField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeNumber, Class: MatchNumeric, Paths: paths, Units: DurationUnits}
}

func timeField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeTimestamp, Class: MatchExact, Paths: paths}
}

func boolField(name string, paths ...string) FieldDef {
	return FieldDef{Name: name, Type: FieldTypeBool, Class: MatchExact, Paths: paths}
}

// DefaultFieldTable returns a fresh copy of the built-in field table.
// Path order within a field is the resolution tie-break.
func DefaultFieldTable() map[EntityType][]FieldDef {
	return map[EntityType][]FieldDef{
		EntityFlows: {
			timeField("timestamp", "ts", "timestamp"),
			ipField("source_ip", "source.ip", "device.ip"),
			ipField("destination_ip", "destination.ip"),
			ipField("device.ip", "device.ip"),
			numberField("source_port", MatchExact, "source.port"),
			numberField("destination_port", MatchExact, "destination.port", "port"),
			exactField("protocol", "protocol"),
			exactField("direction", "direction"),
			bytesField("bytes", "bytes", "total_bytes"),
			bytesField("download", "download"),
			bytesField("upload", "upload"),
			durationField("duration", "duration"),
			numberField("count", MatchNumeric, "count"),
			boolField("blocked", "block", "blocked"),
			textField("device_name", "device.name"),
			exactField("mac", "device.mac", "device.id"),
			textField("domain", "destination.domain", "domain"),
			geoField("country", "destination.country", "country"),
			geoField("region", "destination.region", "region"),
			geoField("city", "destination.city", "city"),
			exactField("asn", "destination.asn", "asn"),
			textField("application", "app.name", "application"),
			exactField("category", "category"),
			exactField("network", "network.name"),
			exactField("gid", "gid"),
		},
		EntityAlarms: {
			timeField("timestamp", "ts", "timestamp"),
			exactField("aid", "aid", "id"),
			exactField("type", "type"),
			{Name: "severity", Type: FieldTypeOrdinal, Class: MatchExact, Paths: []string{"severity"}, Ranks: SeverityRanks},
			numberField("status", MatchExact, "status"),
			textField("message", "message"),
			boolField("resolved", "resolved", "archived"),
			ipField("source_ip", "source.ip", "device.ip"),
			ipField("device.ip", "device.ip"),
			ipField("destination_ip", "remote.ip", "destination.ip"),
			numberField("destination_port", MatchExact, "remote.port", "destination.port"),
			exactField("protocol", "protocol"),
			exactField("direction", "direction"),
			textField("device_name", "device.name"),
			exactField("mac", "device.mac"),
			textField("domain", "remote.domain", "remote.name"),
			geoField("country", "remote.country"),
			geoField("region", "remote.region"),
			geoField("city", "remote.city"),
			exactField("asn", "remote.asn"),
			exactField("category", "remote.category", "category"),
			bytesField("bytes", "transfer.total", "bytes"),
			exactField("gid", "gid"),
		},
		EntityRules: {
			timeField("timestamp", "ts", "createdAt"),
			timeField("updated", "updateTs"),
			timeField("expires", "expire"),
			exactField("id", "id", "rid"),
			exactField("action", "action"),
			textField("target", "target"),
			exactField("target_type", "type"),
			textField("domain", "target"),
			ipField("destination_ip", "target"),
			numberField("destination_port", MatchExact, "remotePort", "port"),
			exactField("direction", "direction"),
			exactField("protocol", "protocol"),
			exactField("scope", "scope.type", "scope"),
			exactField("mac", "scope.mac", "device.mac"),
			exactField("status", "status"),
			boolField("disabled", "disabled"),
			numberField("hit_count", MatchNumeric, "hit.count", "hitCount"),
			textField("notes", "notes"),
			exactField("gid", "gid"),
		},
		EntityDevices: {
			exactField("id", "id", "mac"),
			exactField("mac", "mac", "id"),
			ipField("device.ip", "ip", "ipAddress"),
			ipField("source_ip", "ip", "ipAddress"),
			textField("device_name", "name", "bname"),
			textField("vendor", "macVendor", "vendor"),
			boolField("online", "online"),
			timeField("last_seen", "lastSeen"),
			timeField("timestamp", "lastSeen", "firstFound"),
			exactField("network", "network.name"),
			exactField("group", "group.name"),
			bytesField("download", "totalDownload"),
			bytesField("upload", "totalUpload"),
			exactField("gid", "gid"),
		},
		EntityTargetLists: {
			exactField("id", "id"),
			textField("name", "name"),
			exactField("owner", "owner"),
			exactField("category", "category"),
			textField("target", "targets"),
			textField("domain", "targets"),
			textField("notes", "notes"),
			numberField("target_count", MatchNumeric, "targetCount", "count"),
			timeField("timestamp", "lastUpdated", "ts"),
			exactField("source", "source"),
		},
	}
}

var (
	defaultMapperOnce sync.Once
	defaultMapper     *FieldMapper
)

// DefaultFieldMapper returns the shared mapper built from the built-in table.
// The table is static, so construction cannot fail.
func DefaultFieldMapper() *FieldMapper {
	defaultMapperOnce.Do(func() {
		fm, err := NewFieldMapper(DefaultFieldTable())
		if err != nil {
			panic("core: invalid built-in field table: " + err.Error())
		}
		defaultMapper = fm
	})
	return defaultMapper
}
