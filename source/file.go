// Package source loads entity collections from files on disk. It stands in
// for the remote API client: one file per entity type, either JSON or
// MessagePack, holding an array of records or a {"results": [...]} envelope.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"argus/core"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// DefaultMaxFileSize bounds a single entity collection file
const DefaultMaxFileSize = 256 * 1024 * 1024

// ErrNotFound is returned when no file exists for an entity type
var ErrNotFound = errors.New("entity collection not found")

// Format is an on-disk encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// extensions are tried in order; the first existing file wins
var extensions = []struct {
	ext    string
	format Format
}{
	{".json", FormatJSON},
	{".msgpack", FormatMsgpack},
	{".mpk", FormatMsgpack},
}

// FileSource reads <dir>/<entity_type>.<ext>. Files are read on every
// Fetch; nothing is cached.
type FileSource struct {
	dir     string
	maxSize int64
	logger  *zap.SugaredLogger
}

// NewFileSource creates a source over dir. dir must exist.
func NewFileSource(dir string, logger *zap.SugaredLogger) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileSource{dir: dir, maxSize: DefaultMaxFileSize, logger: logger}, nil
}

// Fetch implements service.EntitySource
func (s *FileSource) Fetch(ctx context.Context, et core.EntityType) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !et.IsValid() {
		return nil, fmt.Errorf("unknown entity type %q", et)
	}

	path, format, err := s.locate(et)
	if err != nil {
		return nil, err
	}

	data, err := s.read(path)
	if err != nil {
		return nil, err
	}

	var records []core.Record
	switch format {
	case FormatMsgpack:
		records, err = DecodeMsgpack(data)
	default:
		records, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	s.logger.Debugw("Loaded entity collection",
		"entity_type", et,
		"path", path,
		"format", format,
		"records", len(records))
	return records, nil
}

func (s *FileSource) locate(et core.EntityType) (string, Format, error) {
	for _, e := range extensions {
		path := filepath.Join(s.dir, string(et)+e.ext)
		if _, err := os.Stat(path); err == nil {
			return path, e.format, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s in %s", ErrNotFound, et, s.dir)
}

func (s *FileSource) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%s exceeds the %d byte limit", path, s.maxSize)
	}
	return data, nil
}

// envelope is the paged API response shape
type envelope struct {
	Results []core.Record `json:"results" msgpack:"results"`
}

// DecodeJSON decodes an array of records or a results envelope
func DecodeJSON(data []byte) ([]core.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []core.Record{}, nil
	}

	if data[0] == '[' {
		var records []core.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return dropNil(records), nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return dropNil(env.Results), nil
}

// DecodeMsgpack decodes an array of maps or a results envelope. Integers
// are widened to int64/uint64 so record values look like decoded JSON.
func DecodeMsgpack(data []byte) ([]core.Record, error) {
	if len(data) == 0 {
		return []core.Record{}, nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}

	var items []interface{}
	switch t := v.(type) {
	case []interface{}:
		items = t
	case map[string]interface{}:
		res, ok := t["results"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("msgpack map has no results array")
		}
		items = res
	default:
		return nil, fmt.Errorf("unexpected msgpack root %T", v)
	}

	records := make([]core.Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			if item == nil {
				continue
			}
			return nil, fmt.Errorf("record %d is %T, not a map", i, item)
		}
		records = append(records, core.Record(m))
	}
	return records, nil
}

func dropNil(records []core.Record) []core.Record {
	out := records[:0]
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	if out == nil {
		return []core.Record{}
	}
	return out
}

// WriteMsgpack encodes records as a MessagePack array, the format Fetch reads
func WriteMsgpack(w io.Writer, records []core.Record) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(records)
}
