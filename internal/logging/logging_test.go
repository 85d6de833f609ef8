package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemonet1337/zaiStockLedger/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Debug("出力されない")
	logger.Info("在庫変動完了")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"在庫変動完了"`)
	assert.Contains(t, out, `"service":"zaiStockLedger"`)
	assert.Contains(t, out, `"timestamp"`)
	assert.NotContains(t, out, "出力されない")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose"})
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "stdout", outputPath(""))
	assert.Equal(t, "stderr", outputPath("stderr"))
	assert.Equal(t, "/var/log/app.log", outputPath("/var/log/app.log"))
}
