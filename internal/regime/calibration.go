package regime

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"wyckoff/internal/logger"
)

// Calibration holds the regime-tuning knobs. The numbers are domain
// calibration, kept in a file so they can be retuned without a restart.
type Calibration struct {
	// Win-rate boundaries that switch adjustments on.
	LoosenWinRate  float64 `yaml:"loosen_win_rate"`
	TightenWinRate float64 `yaml:"tighten_win_rate"`
	// Multipliers applied to the validator's confidence floor.
	ConfidenceLoosenScale  float64 `yaml:"confidence_loosen_scale"`
	ConfidenceTightenScale float64 `yaml:"confidence_tighten_scale"`
	// Multipliers applied to the risk gate's heat ceiling.
	HeatLoosenScale  float64 `yaml:"heat_loosen_scale"`
	HeatTightenScale float64 `yaml:"heat_tighten_scale"`
	// MinSamples is the number of recorded outcomes required before any
	// adjustment kicks in.
	MinSamples int `yaml:"min_samples"`
}

type calibrationFile struct {
	Calibration Calibration `yaml:"calibration"`
}

// DefaultCalibration is used when no calibration file is configured.
func DefaultCalibration() Calibration {
	return Calibration{
		LoosenWinRate:          0.60,
		TightenWinRate:         0.40,
		ConfidenceLoosenScale:  0.90,
		ConfidenceTightenScale: 1.15,
		HeatLoosenScale:        1.10,
		HeatTightenScale:       0.85,
		MinSamples:             10,
	}
}

// CalibrationRegistry reads the calibration file and hot-reloads it on
// change. Readers always get a consistent snapshot.
type CalibrationRegistry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	current  Calibration
	loadedAt time.Time
}

// NewCalibrationRegistry loads the file and starts watching for updates.
func NewCalibrationRegistry(path string) (*CalibrationRegistry, error) {
	if path == "" {
		return nil, fmt.Errorf("calibration registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	r := &CalibrationRegistry{path: path, v: v, current: DefaultCalibration()}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("calibration reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current calibration values.
func (r *CalibrationRegistry) Snapshot() Calibration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *CalibrationRegistry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read calibration file failed: %w", err)
	}
	var file calibrationFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("parse calibration file failed: %w", err)
	}
	calib := normalizeCalibration(file.Calibration)

	r.mu.Lock()
	r.current = calib
	r.loadedAt = time.Now()
	r.mu.Unlock()
	logger.Infof("calibration loaded from %s", filepath.Base(r.path))
	return nil
}

func normalizeCalibration(c Calibration) Calibration {
	def := DefaultCalibration()
	if c.LoosenWinRate <= 0 || c.LoosenWinRate > 1 {
		c.LoosenWinRate = def.LoosenWinRate
	}
	if c.TightenWinRate <= 0 || c.TightenWinRate >= c.LoosenWinRate {
		c.TightenWinRate = def.TightenWinRate
	}
	if c.ConfidenceLoosenScale <= 0 {
		c.ConfidenceLoosenScale = def.ConfidenceLoosenScale
	}
	if c.ConfidenceTightenScale <= 0 {
		c.ConfidenceTightenScale = def.ConfidenceTightenScale
	}
	if c.HeatLoosenScale <= 0 {
		c.HeatLoosenScale = def.HeatLoosenScale
	}
	if c.HeatTightenScale <= 0 {
		c.HeatTightenScale = def.HeatTightenScale
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	return c
}
