package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kmetro/induction/core/emergency"
	"github.com/kmetro/induction/core/model"
	"github.com/kmetro/induction/infra/mqtt"
)

type Config struct {
	Constraints model.ConstraintConfig `json:"constraints"`
	Emergency   emergency.Config       `json:"emergency"`
	MQTT        mqtt.Config            `json:"mqtt"`
	Metrics     MetricsConfig          `json:"metrics"`
	Schedule    ScheduleConfig         `json:"schedule"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("IND_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ind_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Constraints.SetDefaults()
	cfg.Emergency.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Schedule.SetDefaults()
	if err := cfg.Constraints.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
