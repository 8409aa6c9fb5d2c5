// Package config provides the YAML configuration schema and loader for the
// voxgate gateway. The config file enumerates the deployed model servers and
// binds each to one of the built-in model records.
package config

import "github.com/voxgate/voxgate/internal/model"

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DefaultListenAddr is the gateway's listen address unless overridden.
const DefaultListenAddr = ":8000"

// Config is the root configuration structure, loaded from YAML via [Load]
// or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Models []ModelEntry `yaml:"models"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the gateway listens on. Default ":8000".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ModelEntry binds one built-in model record to a deployed upstream server.
type ModelEntry struct {
	// Name is the record's resolve name (e.g. "gpt-oss-20b", "kokoro").
	Name string `yaml:"name"`

	// Host and Port locate the upstream server (HTTP for LLM, gRPC for
	// TTS/STT).
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Params overrides synthesis defaults for TTS records.
	Params ParamsConfig `yaml:"params"`

	// Sampling overrides generation defaults for LLM records.
	Sampling SamplingConfig `yaml:"sampling"`
}

// ParamsConfig holds TTS synthesis overrides.
type ParamsConfig struct {
	Voice string  `yaml:"voice"`
	Speed float64 `yaml:"speed"`
}

// SamplingConfig holds LLM sampling overrides. Nil fields keep the record
// defaults.
type SamplingConfig struct {
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// Endpoints converts the config entries into registry endpoints.
func (c *Config) Endpoints() []model.Endpoint {
	out := make([]model.Endpoint, len(c.Models))
	for i, m := range c.Models {
		out[i] = model.Endpoint{
			Name:        m.Name,
			Host:        m.Host,
			Port:        m.Port,
			Voice:       m.Params.Voice,
			Speed:       m.Params.Speed,
			Temperature: m.Sampling.Temperature,
			TopP:        m.Sampling.TopP,
			MaxTokens:   m.Sampling.MaxTokens,
		}
	}
	return out
}
