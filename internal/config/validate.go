package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"warning": true,
	"error": true,
}

var validRCModes = map[string]bool{
	"vbr": true,
	"cbr": true,
}

// Validate checks the config for invalid values, clamping the ones that
// would otherwise panic or violate a hard codec invariant (e.g. qp_max <=
// 51) and returning the first error for values it cannot safely default.
func (c *Config) Validate() error {
	if c.CaptureDevice == "" {
		return fmt.Errorf("capture_device must not be empty")
	}
	if c.DisplayDevice == "" {
		return fmt.Errorf("display_device must not be empty")
	}

	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("width/height must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Hz <= 0 {
		c.Hz = 30
	}

	if c.BlankAfterSeconds <= 0 {
		c.BlankAfterSeconds = 10
	}

	if c.BitrateTarget <= 0 {
		return fmt.Errorf("bitrate_target must be positive, got %d", c.BitrateTarget)
	}

	if c.RCMode == "" {
		c.RCMode = "cbr"
	} else if !validRCModes[strings.ToLower(c.RCMode)] {
		return fmt.Errorf("rc_mode %q is not valid (use vbr or cbr)", c.RCMode)
	}

	if c.GOPSize <= 0 {
		c.GOPSize = 60
	}
	if c.FPSNum <= 0 {
		c.FPSNum = 30
	}
	if c.FPSDen <= 0 {
		c.FPSDen = 1
	}

	if c.QPMin < 0 {
		c.QPMin = 0
	}
	if c.QPMax > 51 {
		c.QPMax = 51
	}
	if c.QPMin > c.QPMax {
		return fmt.Errorf("qp_min %d exceeds qp_max %d (must be <= and <= 51)", c.QPMin, c.QPMax)
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	return nil
}
