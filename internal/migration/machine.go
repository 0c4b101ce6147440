// Package migration drives the voice-migration pipeline: a persistent
// state machine that sequences profile extraction, distillation,
// calibration, data packaging, and export hand-off.
package migration

import (
	"fmt"

	"github.com/normanking/revoice/pkg/types"
)

// transitions maps each status to the statuses it may advance to. Failed
// is handled separately: it is reachable from every non-terminal status.
var transitions = map[types.MigrationStatus][]types.MigrationStatus{
	types.StatusPending:           {types.StatusExtractingProfile},
	types.StatusExtractingProfile: {types.StatusDistilling},
	types.StatusDistilling:        {types.StatusPreparingData},
	types.StatusPreparingData:     {types.StatusReadyToTrain},
	types.StatusReadyToTrain:      {types.StatusTraining},
	types.StatusTraining:          {types.StatusValidating},
	types.StatusValidating:        {types.StatusCompleted},
	types.StatusCompleted:         {},
	types.StatusFailed:            {},
}

// progressWeights maps status to a coarse completion fraction. Progress is
// a phase indicator, not an ETA.
var progressWeights = map[types.MigrationStatus]float64{
	types.StatusPending:           0.05,
	types.StatusExtractingProfile: 0.2,
	types.StatusDistilling:        0.4,
	types.StatusPreparingData:     0.6,
	types.StatusReadyToTrain:      0.7,
	types.StatusTraining:          0.85,
	types.StatusValidating:        0.95,
	types.StatusCompleted:         1.0,
	types.StatusFailed:            1.0,
}

// CanTransition reports whether from may legally advance to to.
func CanTransition(from, to types.MigrationStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == types.StatusFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error for an illegal transition.
func ValidateTransition(from, to types.MigrationStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal migration transition %s -> %s", from, to)
	}
	return nil
}

// Progress returns the completion fraction for a status. Unknown statuses
// report zero.
func Progress(status types.MigrationStatus) float64 {
	return progressWeights[status]
}
