package main

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/config"
)

func TestNewLogger_ParsesLevel(t *testing.T) {
	cfg := &config.Config{Env: "production", LogLevel: "debug"}
	logger := newLogger(cfg)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("GetLevel() = %v, want %v", logger.GetLevel(), zerolog.DebugLevel)
	}
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	cfg := &config.Config{Env: "production", LogLevel: "chatty"}
	logger := newLogger(cfg)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("GetLevel() = %v, want %v", logger.GetLevel(), zerolog.InfoLevel)
	}
}

func TestNewLogger_WarnLevel(t *testing.T) {
	cfg := &config.Config{Env: "development", LogLevel: "warn"}
	logger := newLogger(cfg)
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("GetLevel() = %v, want %v", logger.GetLevel(), zerolog.WarnLevel)
	}
}
