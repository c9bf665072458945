package config

import (
	"strings"
	"testing"
)

func TestValidateDefaultsOK(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsEmptyCaptureDevice(t *testing.T) {
	cfg := Default()
	cfg.CaptureDevice = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty capture_device")
	}
}

func TestValidateRejectsNonPositiveGeometry(t *testing.T) {
	cfg := Default()
	cfg.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestValidateClampsHzToDefault(t *testing.T) {
	cfg := Default()
	cfg.Hz = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero hz should be clamped not rejected: %v", err)
	}
	if cfg.Hz != 30 {
		t.Fatalf("expected hz clamped to 30, got %d", cfg.Hz)
	}
}

func TestValidateRejectsInvalidRCMode(t *testing.T) {
	cfg := Default()
	cfg.RCMode = "abr"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "rc_mode") {
		t.Fatalf("expected rc_mode error, got %v", err)
	}
}

func TestValidateClampsQPMaxTo51(t *testing.T) {
	cfg := Default()
	cfg.QPMax = 80
	if err := cfg.Validate(); err != nil {
		t.Fatalf("qp_max should be clamped not rejected: %v", err)
	}
	if cfg.QPMax != 51 {
		t.Fatalf("expected qp_max clamped to 51, got %d", cfg.QPMax)
	}
}

func TestValidateRejectsQPMinAboveQPMax(t *testing.T) {
	cfg := Default()
	cfg.QPMin = 45
	cfg.QPMax = 40
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when qp_min exceeds qp_max")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log_level")
	}
}
