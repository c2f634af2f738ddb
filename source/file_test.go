package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestNewFileSource(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "plain", "x")
	_, err = NewFileSource(filepath.Join(dir, "plain"), nil)
	assert.Error(t, err)

	src, err := NewFileSource(dir, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.NotNil(t, src)
}

func TestFileSource_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flows.json", `[
		{"protocol": "tcp", "source": {"ip": "10.0.0.1"}, "bytes": 1200},
		null,
		{"protocol": "udp"}
	]`)
	writeFile(t, dir, "alarms.json", `{"count": 1, "results": [{"aid": "1", "severity": "high"}]}`)

	src, err := NewFileSource(dir, nil)
	require.NoError(t, err)

	flows, err := src.Fetch(context.Background(), core.EntityFlows)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	v, ok := core.GetNested(flows[0], "source.ip")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", v)
	assert.Equal(t, 1200.0, flows[0]["bytes"])

	alarms, err := src.Fetch(context.Background(), core.EntityAlarms)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, "high", alarms[0]["severity"])
}

func TestFileSource_Msgpack(t *testing.T) {
	dir := t.TempDir()
	records := []core.Record{
		{"mac": "AA:BB:CC:DD:EE:FF", "online": true, "totalDownload": 2048, "group": map[string]interface{}{"name": "kids"}},
		{"mac": "11:22:33:44:55:66", "online": false},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMsgpack(&buf, records))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devices.msgpack"), buf.Bytes(), 0o600))

	src, err := NewFileSource(dir, nil)
	require.NoError(t, err)

	got, err := src.Fetch(context.Background(), core.EntityDevices)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got[0]["mac"])
	assert.Equal(t, true, got[0]["online"])
	n, ok := core.ToFloat64(got[0]["totalDownload"])
	assert.True(t, ok)
	assert.Equal(t, 2048.0, n)

	group, ok := core.GetNested(got[0], "group.name")
	assert.True(t, ok)
	assert.Equal(t, "kids", group)
}

func TestFileSource_JSONPreferred(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", `[{"id": "from-json"}]`)

	var buf bytes.Buffer
	require.NoError(t, WriteMsgpack(&buf, []core.Record{{"id": "from-msgpack"}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.msgpack"), buf.Bytes(), 0o600))

	src, err := NewFileSource(dir, nil)
	require.NoError(t, err)
	got, err := src.Fetch(context.Background(), core.EntityRules)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "from-json", got[0]["id"])
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flows.json", `[{"protocol": "tcp"`)
	writeFile(t, dir, "alarms.json", `"just a string"`)

	src, err := NewFileSource(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = src.Fetch(ctx, core.EntityDevices)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = src.Fetch(ctx, core.EntityFlows)
	assert.ErrorContains(t, err, "failed to decode flows.json")

	_, err = src.Fetch(ctx, core.EntityAlarms)
	assert.Error(t, err)

	_, err = src.Fetch(ctx, "logs")
	assert.ErrorContains(t, err, "unknown entity type")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.Fetch(cancelled, core.EntityFlows)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFileSource_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flows.json", `[{"protocol": "tcp"}, {"protocol": "udp"}]`)

	src, err := NewFileSource(dir, nil)
	require.NoError(t, err)
	src.maxSize = 10

	_, err = src.Fetch(context.Background(), core.EntityFlows)
	assert.ErrorContains(t, err, "byte limit")
}

func TestDecodeJSON_Empty(t *testing.T) {
	got, err := DecodeJSON([]byte("  \n"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = DecodeJSON([]byte(`{"results": []}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeMsgpack_Invalid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMsgpack(&buf, nil))
	got, err := DecodeMsgpack(buf.Bytes())
	// a nil slice encodes as msgpack nil
	assert.Error(t, err)
	assert.Nil(t, got)

	_, err = DecodeMsgpack([]byte{0xc1})
	assert.Error(t, err)
}
