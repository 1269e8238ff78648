// Package config loads the control layer's persisted defaults (spec §6:
// "the control layer persists configuration... and replays it on startup
// via initial commands"). The engine core itself never reads the
// environment; this package exists purely for cmd/djengine and other
// control-layer callers.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the control layer's persisted, replay-at-startup settings.
type Config struct {
	TargetLUFS            float64
	DefaultLoopBeats       float64
	SlicerWindowBars      int
	GlobalBPM             float64
	PhaseSyncEnabled      bool
	KeyScoringModel       string
	CommandRingCapacity   int
	MaxCmdsPerCallback    int
	EffectLatencyCeiling  int64
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		TargetLUFS:           -14.0,
		DefaultLoopBeats:     4,
		SlicerWindowBars:     4,
		GlobalBPM:            120,
		PhaseSyncEnabled:     true,
		KeyScoringModel:      "camelot",
		CommandRingCapacity:  1024,
		MaxCmdsPerCallback:   64,
		EffectLatencyCeiling: 8000,
	}
}

// Load reads an optional .env file (ignored if absent) and overlays the
// MESHCORE_TARGET_LUFS, MESHCORE_GLOBAL_BPM, MESHCORE_PHASE_SYNC and
// MESHCORE_SLICER_WINDOW_BARS environment variables onto the defaults.
func Load(envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}
	cfg := Default()
	if v, ok := os.LookupEnv("MESHCORE_TARGET_LUFS"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TargetLUFS = f
		}
	}
	if v, ok := os.LookupEnv("MESHCORE_GLOBAL_BPM"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.GlobalBPM = f
		}
	}
	if v, ok := os.LookupEnv("MESHCORE_PHASE_SYNC"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PhaseSyncEnabled = b
		}
	}
	if v, ok := os.LookupEnv("MESHCORE_SLICER_WINDOW_BARS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SlicerWindowBars = n
		}
	}
	return cfg
}
