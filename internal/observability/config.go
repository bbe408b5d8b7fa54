package observability

import (
	"strings"

	"github.com/smallbiznis/tryon/internal/config"
)

const defaultServiceName = "tryon"

// Config is the normalized telemetry view of config.Config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	tel := cfg.Telemetry

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             oneOf(tel.LogLevel, "info", "debug", "info", "warn", "error"),
		LogFormat:            oneOf(tel.LogFormat, "json", "json", "console"),
		OtelEnabled:          tel.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(tel.OtelEndpoint),
		OtelExporterProtocol: oneOf(tel.OtelProtocol, "grpc", "grpc", "http"),
		OtelSamplingRatio:    clampRatio(tel.SamplingRatio),
	}
}

// Debug enables verbose logs and gin debug mode.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func oneOf(value, def string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	return def
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
