package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ClassifySourceError explains why the data directory could not be opened
func ClassifySourceError(err error, dir string) string {
	if err == nil {
		return ""
	}
	absDir, _ := filepath.Abs(dir)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("Data directory %s does not exist.\n"+
			"  Remediation:\n"+
			"  - Create it and add <entity_type>.json or .msgpack files (flows.json, alarms.json, ...)\n"+
			"  - Point source.data_dir, ARGUS_DATA_DIR or --data-dir at an existing directory", absDir)
	case errors.Is(err, os.ErrPermission):
		return fmt.Sprintf("Permission denied reading data directory %s.\n"+
			"  Remediation:\n"+
			"  - Check directory permissions: ls -ld %s", absDir, absDir)
	case strings.Contains(err.Error(), "not a directory"):
		return fmt.Sprintf("Data directory %s is a file, not a directory.\n"+
			"  Remediation:\n"+
			"  - Point source.data_dir at the directory holding the entity files", absDir)
	}
	return fmt.Sprintf("Failed to open data directory %s: %v", absDir, err)
}

// ClassifyMappingError explains why the field mapping override failed to load
func ClassifyMappingError(err error, path string) string {
	if err == nil {
		return ""
	}
	absPath, _ := filepath.Abs(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("Field mapping file %s does not exist.\n"+
			"  Remediation:\n"+
			"  - Fix fields.mapping_file or ARGUS_FIELDS_MAPPING_FILE\n"+
			"  - Leave it empty to use the built-in mapping table", absPath)
	case errors.Is(err, os.ErrPermission):
		return fmt.Sprintf("Permission denied reading field mapping file %s.", absPath)
	}
	return fmt.Sprintf("Invalid field mapping file %s: %v\n"+
		"  Remediation:\n"+
		"  - Run 'argus fields' to see the built-in table and valid field types", absPath, err)
}
