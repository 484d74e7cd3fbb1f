package workout

import (
	"fmt"

	"github.com/2beens/gymplan/internal/gymplan"
)

// ProposedSet is a workout set about to be written.
type ProposedSet struct {
	SetNumber    int
	PlannedSetID int
	// Replaces is set when the write updates an already logged set of the same planned set.
	Replaces bool
}

// LineageState is what the store knows about the slot the proposed set is written to.
type LineageState struct {
	WorkoutExerciseID    int
	WorkoutExercisePDEID int
	PlannedSetPDEID      int
	PlannedSetNumber     int
	// LoggedSets counts the sets already logged for the workout exercise.
	LoggedSets int
	// PlannedSets counts the planned sets of the workout exercise's day exercise.
	PlannedSets int
}

// CheckInvariants returns an *gymplan.InvariantViolation when writing the proposed
// set would break the plan/actual consistency. Rules are checked in order A, B, C.
func CheckInvariants(proposed ProposedSet, state LineageState) error {
	if proposed.SetNumber != state.PlannedSetNumber {
		return &gymplan.InvariantViolation{
			Rule: gymplan.RuleNumberAgreement,
			Detail: fmt.Sprintf(
				"set number %d does not match planned set %d number %d",
				proposed.SetNumber, proposed.PlannedSetID, state.PlannedSetNumber,
			),
		}
	}

	if state.WorkoutExercisePDEID != state.PlannedSetPDEID {
		return &gymplan.InvariantViolation{
			Rule: gymplan.RuleLineageAgreement,
			Detail: fmt.Sprintf(
				"workout exercise %d is bound to day exercise %d, planned set %d belongs to day exercise %d",
				state.WorkoutExerciseID, state.WorkoutExercisePDEID, proposed.PlannedSetID, state.PlannedSetPDEID,
			),
		}
	}

	after := state.LoggedSets + 1
	if proposed.Replaces {
		after--
	}
	if after > state.PlannedSets {
		return &gymplan.InvariantViolation{
			Rule: gymplan.RuleBoundedCardinality,
			Detail: fmt.Sprintf(
				"workout exercise %d would hold %d sets, %d planned",
				state.WorkoutExerciseID, after, state.PlannedSets,
			),
		}
	}

	return nil
}
