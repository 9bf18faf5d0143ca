package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New("debug", "json", &buf)
	require.NoError(t, err)

	log := Component(l, "realtime")
	log.Info().Str("topic", "conversation:1").Msg("subscribed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "realtime", line["component"])
	assert.Equal(t, "luggage-api", line["service"])
	assert.Equal(t, "subscribed", line["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New("warn", "json", &buf)
	require.NoError(t, err)

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()

	_, err := New("loud", "json", nil)
	require.Error(t, err)
}
