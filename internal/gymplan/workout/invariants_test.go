package workout_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/gymplan/workout"
)

func validState() (workout.ProposedSet, workout.LineageState) {
	return workout.ProposedSet{
			SetNumber:    2,
			PlannedSetID: 20,
		}, workout.LineageState{
			WorkoutExerciseID:    7,
			WorkoutExercisePDEID: 3,
			PlannedSetPDEID:      3,
			PlannedSetNumber:     2,
			LoggedSets:           1,
			PlannedSets:          3,
		}
}

func TestCheckInvariants(t *testing.T) {
	proposed, state := validState()
	require.NoError(t, workout.CheckInvariants(proposed, state))

	t.Run("set number mismatch", func(t *testing.T) {
		proposed, state := validState()
		proposed.SetNumber = 3
		err := workout.CheckInvariants(proposed, state)
		require.Error(t, err)
		assert.ErrorIs(t, err, gymplan.ErrInvariantViolation)
		rule, ok := gymplan.ViolatedRule(err)
		require.True(t, ok)
		assert.Equal(t, gymplan.RuleNumberAgreement, rule)
	})

	t.Run("planned set of another slot", func(t *testing.T) {
		proposed, state := validState()
		state.PlannedSetPDEID = 4
		rule, ok := gymplan.ViolatedRule(workout.CheckInvariants(proposed, state))
		require.True(t, ok)
		assert.Equal(t, gymplan.RuleLineageAgreement, rule)
	})

	t.Run("more sets than planned", func(t *testing.T) {
		proposed, state := validState()
		state.LoggedSets = 3
		rule, ok := gymplan.ViolatedRule(workout.CheckInvariants(proposed, state))
		require.True(t, ok)
		assert.Equal(t, gymplan.RuleBoundedCardinality, rule)
	})

	t.Run("replacing at full cardinality", func(t *testing.T) {
		proposed, state := validState()
		state.LoggedSets = 3
		proposed.Replaces = true
		assert.NoError(t, workout.CheckInvariants(proposed, state))
	})

	t.Run("number checked before lineage", func(t *testing.T) {
		proposed, state := validState()
		proposed.SetNumber = 9
		state.PlannedSetPDEID = 4
		state.LoggedSets = 10
		rule, ok := gymplan.ViolatedRule(workout.CheckInvariants(proposed, state))
		require.True(t, ok)
		assert.Equal(t, gymplan.RuleNumberAgreement, rule)
	})
}

func TestCheckInvariants_Randomized(t *testing.T) {
	gofakeit.Seed(20240611)

	for i := 0; i < 5000; i++ {
		proposed := workout.ProposedSet{
			SetNumber:    gofakeit.Number(1, 5),
			PlannedSetID: gofakeit.Number(1, 1000),
			Replaces:     gofakeit.Bool(),
		}
		state := workout.LineageState{
			WorkoutExerciseID:    gofakeit.Number(1, 1000),
			WorkoutExercisePDEID: gofakeit.Number(1, 3),
			PlannedSetPDEID:      gofakeit.Number(1, 3),
			PlannedSetNumber:     gofakeit.Number(1, 5),
			LoggedSets:           gofakeit.Number(0, 6),
			PlannedSets:          gofakeit.Number(0, 6),
		}

		after := state.LoggedSets + 1
		if proposed.Replaces {
			after--
		}
		holdsA := proposed.SetNumber == state.PlannedSetNumber
		holdsB := state.WorkoutExercisePDEID == state.PlannedSetPDEID
		holdsC := after <= state.PlannedSets

		err := workout.CheckInvariants(proposed, state)
		if holdsA && holdsB && holdsC {
			require.NoError(t, err, "proposed: %+v, state: %+v", proposed, state)
			continue
		}

		require.Error(t, err, "proposed: %+v, state: %+v", proposed, state)
		rule, ok := gymplan.ViolatedRule(err)
		require.True(t, ok)
		switch {
		case !holdsA:
			assert.Equal(t, gymplan.RuleNumberAgreement, rule)
		case !holdsB:
			assert.Equal(t, gymplan.RuleLineageAgreement, rule)
		default:
			assert.Equal(t, gymplan.RuleBoundedCardinality, rule)
		}
	}
}
