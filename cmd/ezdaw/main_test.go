package main

import (
	"testing"

	"github.com/yok-tottii/ezdaw/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	f, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if f.configPath != config.GetConfigPath() {
		t.Errorf("configPath = %q, want %q", f.configPath, config.GetConfigPath())
	}
	if f.port != -1 {
		t.Errorf("port = %d, want -1", f.port)
	}
	if f.headless {
		t.Error("headless should default to false")
	}
}

func TestFlagsApply(t *testing.T) {
	f, err := parseFlags([]string{"-backend", "malgo", "-port", "0", "-debuglevel", "debug", "-headless"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	cfg := config.DefaultConfig()
	if err := f.apply(cfg); err != nil {
		t.Fatalf("apply() error = %v", err)
	}
	if cfg.Backend != "malgo" {
		t.Errorf("Backend = %q, want malgo", cfg.Backend)
	}
	if cfg.ServerPort != 0 {
		t.Errorf("ServerPort = %d, want 0", cfg.ServerPort)
	}
	if cfg.DebugLevel != "debug" {
		t.Errorf("DebugLevel = %q, want debug", cfg.DebugLevel)
	}
	if !f.headless {
		t.Error("headless should be set")
	}
}

func TestFlagsApplyInvalid(t *testing.T) {
	f, err := parseFlags([]string{"-port", "70000"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	cfg := config.DefaultConfig()
	if err := f.apply(cfg); err == nil {
		t.Fatal("apply() should reject an out of range port")
	}
	if cfg.ServerPort != config.DefaultConfig().ServerPort {
		t.Errorf("ServerPort changed to %d after a rejected override", cfg.ServerPort)
	}
}

func TestParseFlagsUnknown(t *testing.T) {
	if _, err := parseFlags([]string{"-nope"}); err == nil {
		t.Fatal("parseFlags() should reject unknown flags")
	}
}
