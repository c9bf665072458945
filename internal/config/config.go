package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("config")

// Config holds the runtime-tunable parameters for the frame pipeline: which
// capture and display devices to drive, the requested display mode, and the
// vendor codec's rate-control/encode parameters. Command-line/option parsing
// depth is out of this repository's scope; Config exists to be loaded once at
// startup and handed to the components that need it.
type Config struct {
	CaptureDevice string `mapstructure:"capture_device"`
	DisplayDevice string `mapstructure:"display_device"`
	PortName      string `mapstructure:"port_name"`

	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	Hz     int `mapstructure:"hz"`

	BlankAfterSeconds int `mapstructure:"blank_after_seconds"`

	BitrateTarget int    `mapstructure:"bitrate_target"`
	RCMode        string `mapstructure:"rc_mode"` // "vbr" or "cbr"
	GOPSize       int    `mapstructure:"gop_size"`
	FPSNum        int    `mapstructure:"fps_num"`
	FPSDen        int    `mapstructure:"fps_den"`

	Profile int `mapstructure:"h264_profile"`
	Level   int `mapstructure:"h264_level"`
	QPInit  int `mapstructure:"qp_init"`
	QPMin   int `mapstructure:"qp_min"`
	QPMax   int `mapstructure:"qp_max"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		CaptureDevice: "/dev/video0",
		DisplayDevice: "/dev/dri/card0",

		Width:  1280,
		Height: 720,
		Hz:     30,

		BlankAfterSeconds: 10,

		BitrateTarget: 4_000_000,
		RCMode:        "cbr",
		GOPSize:       60,
		FPSNum:        30,
		FPSDen:        1,

		Profile: 100, // High
		Level:   40,  // 4.0
		QPInit:  24,
		QPMin:   16,
		QPMax:   40,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("streamnode")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STREAMNODE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		log.Error("config validation failed", "error", err)
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("capture_device", cfg.CaptureDevice)
	viper.Set("display_device", cfg.DisplayDevice)
	viper.Set("port_name", cfg.PortName)
	viper.Set("width", cfg.Width)
	viper.Set("height", cfg.Height)
	viper.Set("hz", cfg.Hz)
	viper.Set("bitrate_target", cfg.BitrateTarget)
	viper.Set("rc_mode", cfg.RCMode)
	viper.Set("gop_size", cfg.GOPSize)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "streamnode.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "streamnode")
	case "darwin":
		return "/Library/Application Support/streamnode"
	default:
		return "/etc/streamnode"
	}
}
