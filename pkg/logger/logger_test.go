package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log_rotating", "main.log")

	log, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("setup logging done", zap.String("pgid", "PG0001"))
	_ = log.Sync() // stderr may not support fsync

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"setup logging done"`)
	assert.Contains(t, string(data), `"pgid":"PG0001"`)
	assert.Contains(t, string(data), `"timestamp":`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNamed_NilBase(t *testing.T) {
	assert.NotNil(t, Named(nil, "converter"))
}
