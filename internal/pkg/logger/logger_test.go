package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: WarnLevel, Output: &buf})
	t.Cleanup(func() { Configure(Config{Level: InfoLevel, Pretty: true}) })

	Info().Msg("dropped")
	l := Component("circulation")
	l.Warn().Int("book_id", 7).Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "circulation", entry["component"])
	assert.EqualValues(t, 7, entry["book_id"])
}

func TestParseFormat(t *testing.T) {
	assert.True(t, ParseFormat("TEXT"))
	assert.False(t, ParseFormat("json"))
}

func TestWithFieldAndWithFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: InfoLevel, Output: &buf})
	t.Cleanup(func() { Configure(Config{Level: InfoLevel, Pretty: true}) })

	single := WithField("request_id", "abc")
	single.Info().Msg("one")
	multi := WithFields(map[string]interface{}{"user_id": 3, "role": "staff"})
	multi.Info().Msg("two")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "abc", first["request_id"])
	assert.EqualValues(t, 3, second["user_id"])
	assert.Equal(t, "staff", second["role"])
	assert.NotContains(t, second, "request_id")
}
