package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Duration accepts YAML scalars like "8s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("unable to parse duration '%s': %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the program configuration, overridable per-field from a YAML
// file and then from command line flags.
type Config struct {
	Output struct {
		// Dir is where the page stylesheet and manifest are written.
		Dir string `yaml:"dir"`
		// AssetFolder is where captured assets are saved.
		AssetFolder string `yaml:"asset_folder"`
		// AssetRelPath is the path the page stylesheet uses to reference them.
		AssetRelPath string `yaml:"asset_rel_path"`
	} `yaml:"output"`
	Capture struct {
		EmbedCSS   bool `yaml:"embed_css"`
		SaveFonts  bool `yaml:"save_fonts"`
		SaveImages bool `yaml:"save_images"`
		FixStyle   bool `yaml:"fix_style"`
	} `yaml:"capture"`
	Fetch struct {
		Timeout   Duration `yaml:"timeout"`
		MaxTries  int      `yaml:"max_tries"`
		UserAgent string   `yaml:"user_agent"`
	} `yaml:"fetch"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Output.Dir = "clip"
	cfg.Output.AssetFolder = "clip/assets"
	cfg.Output.AssetRelPath = "assets"
	cfg.Capture.SaveFonts = true
	cfg.Capture.SaveImages = true
	cfg.Fetch.Timeout = Duration(8 * time.Second)
	cfg.Fetch.MaxTries = 3
	cfg.Fetch.UserAgent = "styleclip/1.0"
	cfg.Logging.Level = "info"
	return cfg
}

// loadConfig returns defaults overlaid with the YAML file at path, if any.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration '%s': %w", path, err)
	}
	return cfg, nil
}

// prepareLog builds a console logger at the configured level.
func prepareLog(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unable to parse log level '%s': %w", level, err)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core), nil
}
