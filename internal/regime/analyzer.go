// Package regime adjusts validation and risk thresholds based on recent
// campaign performance segmented by market regime. It feeds the sequence
// validator and the risk gate as tunable parameters, never as a hard
// dependency: both consult it through small Tuner interfaces.
package regime

import (
	"strings"
	"sync"

	"wyckoff/internal/logger"
)

// Regime classifies current market conditions. Supplied by an external
// collaborator (or an operator) rather than computed here.
type Regime string

const (
	RegimeTrending Regime = "TRENDING"
	RegimeRanging  Regime = "RANGING"
	RegimeVolatile Regime = "VOLATILE"
)

// ParseRegime normalizes an externally supplied regime label.
func ParseRegime(s string) (Regime, bool) {
	switch Regime(strings.ToUpper(strings.TrimSpace(s))) {
	case RegimeTrending:
		return RegimeTrending, true
	case RegimeRanging:
		return RegimeRanging, true
	case RegimeVolatile:
		return RegimeVolatile, true
	}
	return "", false
}

// CalibrationSource provides the current tuning knobs. *CalibrationRegistry
// implements it; tests use a fixed snapshot.
type CalibrationSource interface {
	Snapshot() Calibration
}

type fixedCalibration struct{ c Calibration }

func (f fixedCalibration) Snapshot() Calibration { return f.c }

// FixedCalibration wraps a static calibration as a source.
func FixedCalibration(c Calibration) CalibrationSource { return fixedCalibration{c} }

// Analyzer keeps a bounded window of campaign outcomes per regime and derives
// threshold adjustments from the win rate in the current regime.
type Analyzer struct {
	mu       sync.RWMutex
	window   int
	current  Regime
	outcomes map[Regime][]bool
	source   CalibrationSource
}

func NewAnalyzer(window int, source CalibrationSource) *Analyzer {
	if window <= 0 {
		window = 50
	}
	if source == nil {
		source = FixedCalibration(DefaultCalibration())
	}
	return &Analyzer{
		window:   window,
		current:  RegimeRanging,
		outcomes: make(map[Regime][]bool),
		source:   source,
	}
}

// SetRegime switches the active regime used for threshold derivation.
func (a *Analyzer) SetRegime(r Regime) {
	a.mu.Lock()
	prev := a.current
	a.current = r
	a.mu.Unlock()
	if prev != r {
		logger.Infof("regime: switched %s -> %s", prev, r)
	}
}

// CurrentRegime returns the active regime.
func (a *Analyzer) CurrentRegime() Regime {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// RecordOutcome appends a completed (success) or failed (false) campaign
// outcome under the regime it resolved in, pruning beyond the window.
func (a *Analyzer) RecordOutcome(r Regime, success bool) {
	if r == "" {
		r = a.CurrentRegime()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	list := append(a.outcomes[r], success)
	if len(list) > a.window {
		list = list[len(list)-a.window:]
	}
	a.outcomes[r] = list
}

// ConfidenceScale implements validation.Tuner: below 1 after strong recent
// performance in the current regime, above 1 after weak performance.
func (a *Analyzer) ConfidenceScale() float64 {
	calib := a.source.Snapshot()
	rate, n := a.winRate()
	if n < calib.MinSamples {
		return 1
	}
	switch {
	case rate >= calib.LoosenWinRate:
		return calib.ConfidenceLoosenScale
	case rate <= calib.TightenWinRate:
		return calib.ConfidenceTightenScale
	default:
		return 1
	}
}

// HeatScale implements risk.Tuner: the heat ceiling breathes with regime
// performance, widening when the regime is paying and contracting when not.
func (a *Analyzer) HeatScale() float64 {
	calib := a.source.Snapshot()
	rate, n := a.winRate()
	if n < calib.MinSamples {
		return 1
	}
	switch {
	case rate >= calib.LoosenWinRate:
		return calib.HeatLoosenScale
	case rate <= calib.TightenWinRate:
		return calib.HeatTightenScale
	default:
		return 1
	}
}

func (a *Analyzer) winRate() (float64, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	list := a.outcomes[a.current]
	if len(list) == 0 {
		return 0, 0
	}
	wins := 0
	for _, ok := range list {
		if ok {
			wins++
		}
	}
	return float64(wins) / float64(len(list)), len(list)
}
