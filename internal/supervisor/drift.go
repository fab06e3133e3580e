package supervisor

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"constraint-engine/internal/models"
)

// DetectDrift reports how far a constraint's recent precision has fallen
// from its older baseline, 0 (stable) to 1 (high drift). windowSize values
// of zero or less use the configured drift window.
func (sv *Supervisor) DetectDrift(constraintID string, windowSize int) float64 {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	rec, ok := sv.doc.Constraints[constraintID]
	if !ok {
		return 0
	}
	if windowSize <= 0 {
		windowSize = sv.cfg.DriftWindow
	}
	return driftScore(rec.TriggerHistory, windowSize)
}

// driftScore compares precision across two adjacent windows of trigger
// history and blends the decline with the volatility of the recent window.
// Histories shorter than one window score zero; histories shorter than two
// windows compare the recent window against itself, so only volatility
// contributes.
func driftScore(history []models.TriggerEvent, windowSize int) float64 {
	if windowSize <= 0 || len(history) < windowSize {
		return 0
	}

	recent := indicators(history[len(history)-windowSize:])
	recentPrecision := stat.Mean(recent, nil)

	olderPrecision := recentPrecision
	if len(history) >= 2*windowSize {
		older := indicators(history[len(history)-2*windowSize : len(history)-windowSize])
		olderPrecision = stat.Mean(older, nil)
	}

	decline := math.Max(0, olderPrecision-recentPrecision)
	variance := stat.PopVariance(recent, nil)

	return math.Min(1, 0.7*decline+0.3*variance)
}

// indicators maps trigger outcomes to 1 (true positive) or 0 (anything
// else), the series all drift statistics run over.
func indicators(window []models.TriggerEvent) []float64 {
	out := make([]float64, len(window))
	for i, ev := range window {
		if ev.Result == models.OutcomeTruePositive {
			out[i] = 1
		}
	}
	return out
}
