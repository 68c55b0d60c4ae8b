package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).WithFields(Fields{"component": "pagination", "page": 2})

	log.Info().Msg("fetching page")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pagination", entry["component"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, "fetching page", entry["message"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithError(errors.New("boom")).Warn().Msg("stopping")

	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestForCrawl(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	t.Cleanup(func() { Default = nil })

	ForCrawl("slider", "https://example.com").Info().Msg("opened")

	assert.Contains(t, buf.String(), `"component":"slider"`)
	assert.Contains(t, buf.String(), `"url":"https://example.com"`)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error().Msg("discarded")
	})
}
