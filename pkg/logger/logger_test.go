package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	Initialize(Config{Level: "debug", Format: "json", Output: &buf})

	WithContext(map[string]interface{}{"request_id": "abc"}).
		Info("order placed", map[string]interface{}{"order_id": 7})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "order placed", entry["message"])
	assert.Equal(t, "abc", entry["request_id"])
	assert.Equal(t, float64(7), entry["order_id"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Initialize(Config{Level: "warn", Format: "json", Output: &buf})

	Debug("hidden")
	Info("hidden")
	assert.Empty(t, buf.String())

	Error("visible", errors.New("boom"))
	assert.Contains(t, buf.String(), "boom")

	Initialize(Config{Level: "info", Format: "json", Output: &bytes.Buffer{}})
}
