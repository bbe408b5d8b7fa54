package observability

import (
	"testing"

	"github.com/smallbiznis/tryon/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: " Production ",
		AppVersion:  "1.2.3",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "VERBOSE",
			LogFormat:     "Console",
			OtelProtocol:  "HTTP",
			SamplingRatio: 4,
		},
	})

	assert.Equal(t, "tryon", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestDebug(t *testing.T) {
	assert.True(t, LoadConfig(config.Config{Environment: "development"}).Debug())
	assert.True(t, LoadConfig(config.Config{
		Environment: "production",
		Telemetry:   config.TelemetryConfig{LogLevel: "debug"},
	}).Debug())
}
