package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/voxgate/voxgate/internal/model"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(cfg.Models) == 0 {
		errs = append(errs, errors.New("models is empty; at least one model server must be configured"))
	}

	namesSeen := make(map[string]int, len(cfg.Models))
	for i, m := range cfg.Models {
		prefix := fmt.Sprintf("models[%d]", i)
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		rec, known := model.RecordByName(m.Name)
		if !known {
			errs = append(errs, fmt.Errorf("%s.name %q does not match any known model record", prefix, m.Name))
			continue
		}
		if prev, ok := namesSeen[rec.ResolveName]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of models[%d]", prefix, m.Name, prev))
		}
		namesSeen[rec.ResolveName] = i

		if m.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", prefix))
		}
		if m.Port <= 0 || m.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port %d is out of range [1, 65535]", prefix, m.Port))
		}
		if m.Params.Speed != 0 {
			if m.Params.Speed < 0.5 || m.Params.Speed > 2.0 {
				errs = append(errs, fmt.Errorf("%s.params.speed %.2f is out of range [0.5, 2.0]", prefix, m.Params.Speed))
			}
			if rec.Kind != model.KindTTS {
				errs = append(errs, fmt.Errorf("%s.params.speed is only valid for TTS models, %q is %s", prefix, m.Name, rec.Kind))
			}
		}
		if m.Params.Voice != "" && rec.Kind != model.KindTTS {
			errs = append(errs, fmt.Errorf("%s.params.voice is only valid for TTS models, %q is %s", prefix, m.Name, rec.Kind))
		}
		if s := m.Sampling; (s.Temperature != nil || s.TopP != nil || s.MaxTokens != nil) && rec.Kind != model.KindLLM {
			errs = append(errs, fmt.Errorf("%s.sampling is only valid for LLM models, %q is %s", prefix, m.Name, rec.Kind))
		}
		if s := m.Sampling; s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
			errs = append(errs, fmt.Errorf("%s.sampling.temperature %.2f is out of range [0, 2]", prefix, *s.Temperature))
		}
		if s := m.Sampling; s.TopP != nil && (*s.TopP <= 0 || *s.TopP > 1) {
			errs = append(errs, fmt.Errorf("%s.sampling.top_p %.2f is out of range (0, 1]", prefix, *s.TopP))
		}
		if s := m.Sampling; s.MaxTokens != nil && *s.MaxTokens <= 0 {
			errs = append(errs, fmt.Errorf("%s.sampling.max_tokens %d must be positive", prefix, *s.MaxTokens))
		}
	}

	return errors.Join(errs...)
}
