package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	assert.True(t, ValidLevel("info"))
	assert.False(t, ValidLevel("trace"))
}

func TestNewWriterFiltersAndTags(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "hesched", "warn")
	log.Info("hidden")
	log.Warn("shown", "op", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "app=hesched")
	assert.Contains(t, out, "op=3")
	assert.Contains(t, out, "pid=")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := Discard()
	assert.Same(t, l, OrDiscard(l))
}
