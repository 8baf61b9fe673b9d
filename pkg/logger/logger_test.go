package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestContextHelpersAddFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("DEBUG", &buf)

	log.WithShipmentID("shp_1").WithRecipient("u123").WithError(errors.New("boom")).Info("processed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shp_1", line["shipment_id"])
	assert.Equal(t, "u123", line["recipient_id"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "processed", line["msg"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("INFO", &buf)
	log.Debug("hidden")
	assert.Zero(t, buf.Len())
}
