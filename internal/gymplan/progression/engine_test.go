package progression_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/gymplan/memstore"
	"github.com/2beens/gymplan/internal/gymplan/plan"
	"github.com/2beens/gymplan/internal/gymplan/progression"
	"github.com/2beens/gymplan/internal/telemetry/metrics"
)

const owner = 3

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestNextTargets(t *testing.T) {
	rows := []gymplan.PlannedActual{
		{PlannedSetID: 1, Position: 1, SetNumber: 1, Reps: intPtr(8), Weight: floatPtr(60)},
		{PlannedSetID: 2, Position: 1, SetNumber: 2, Reps: intPtr(10), Weight: floatPtr(62.5)},
		{PlannedSetID: 3, Position: 2, SetNumber: 1, Reps: intPtr(12)},
		{PlannedSetID: 4, Position: 2, SetNumber: 2, Reps: intPtr(0)},
		{PlannedSetID: 5, Position: 3, SetNumber: 1},
	}

	targets := progression.NextTargets(rows)
	require.Len(t, targets, 4)

	assert.Equal(t, progression.Target{Position: 1, SetNumber: 1, Reps: 9, Weight: floatPtr(60)}, targets[0])
	assert.Equal(t, progression.Target{Position: 1, SetNumber: 2, Reps: 11, Weight: floatPtr(62.5)}, targets[1])
	assert.Equal(t, 13, targets[2].Reps)
	assert.Nil(t, targets[2].Weight)
	// zero reps still plans one
	assert.Equal(t, 1, targets[3].Reps)

	assert.Empty(t, progression.NextTargets(nil))
}

type engineFixture struct {
	store    *memstore.Store
	builder  *plan.Builder
	engine   *progression.Engine
	metrics  *metrics.Manager
	program  int
	exercise int
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := memstore.New()
	m := metrics.NewTestManager()
	builder := plan.NewBuilder(store, store)
	f := &engineFixture{
		store:   store,
		builder: builder,
		engine:  progression.NewEngine(store, store, store, builder, m),
		metrics: m,
	}

	ex, err := store.Add(context.Background(), gymplan.Exercise{Name: "Squat", MuscleGroup: "legs", IsGlobal: true})
	require.NoError(t, err)
	f.exercise = ex.ID

	program, err := builder.CreateProgram(context.Background(), owner, "Legs", nil)
	require.NoError(t, err)
	f.program = program.ID
	return f
}

func (f *engineFixture) slot(t *testing.T, week, position int, reps ...int) {
	t.Helper()
	ctx := context.Background()
	_, err := f.builder.AddDayExercise(ctx, plan.AddDayExerciseParams{
		ProgramID:  f.program,
		WeekNumber: week,
		DayOfWeek:  2,
		ExerciseID: f.exercise,
		Position:   position,
	})
	require.NoError(t, err)
	for i, r := range reps {
		_, err := f.builder.AddPlannedSet(ctx, plan.AddPlannedSetParams{
			ProgramID:  f.program,
			WeekNumber: week,
			DayOfWeek:  2,
			Position:   position,
			SetNumber:  i + 1,
			Reps:       r,
			Weight:     floatPtr(100),
		})
		require.NoError(t, err)
	}
}

// workout opens a week 1 workout and logs actual reps for position 1 at 100kg,
// one value per planned set starting at set 1.
func (f *engineFixture) workout(t *testing.T, actualReps ...int) int {
	t.Helper()
	ctx := context.Background()
	var workoutID int
	err := f.store.InTx(ctx, func(q db.Querier) error {
		day, err := f.store.FindDay(ctx, q, f.program, 1, 2)
		if err != nil {
			return err
		}
		w, _, err := f.store.CreateOpenWorkout(ctx, q, owner, day.ID, time.Now())
		if err != nil {
			return err
		}
		workoutID = w.ID
		pde, err := f.store.GetDayExerciseAt(ctx, q, day.ID, 1)
		if err != nil {
			return err
		}
		wex, err := f.store.EnsureWorkoutExercise(ctx, q, w.ID, pde.ID, 1)
		if err != nil {
			return err
		}
		for i, reps := range actualReps {
			ps, err := f.store.GetPlannedSetByNumber(ctx, q, pde.ID, i+1)
			if err != nil {
				return err
			}
			if _, err := f.store.InsertWorkoutSet(ctx, q, gymplan.WorkoutSet{
				WorkoutExerciseID: wex.ID,
				PlannedSetID:      ps.ID,
				SetNumber:         ps.SetNumber,
				Reps:              reps,
				Weight:            floatPtr(100),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return workoutID
}

func (f *engineFixture) week2Sets(t *testing.T) []gymplan.PlannedSet {
	t.Helper()
	weekPlan, err := f.builder.WeekPlan(context.Background(), f.program, 2)
	require.NoError(t, err)
	require.Len(t, weekPlan.Days, 1)
	require.NotEmpty(t, weekPlan.Days[0].Exercises)
	return weekPlan.Days[0].Exercises[0].Sets
}

func TestEngine_Apply(t *testing.T) {
	f := newEngineFixture(t)
	f.slot(t, 1, 1, 8, 10, 12)
	f.slot(t, 2, 1)

	workoutID := f.workout(t, 8, 10, 12)
	result, err := f.engine.Apply(context.Background(), workoutID)
	require.NoError(t, err)
	assert.Equal(t, progression.OutcomeApplied, result.Outcome)
	assert.Equal(t, f.program, result.ProgramID)
	assert.Equal(t, 2, result.NextWeek)
	assert.Equal(t, 2, result.DayOfWeek)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.SkippedSlots)

	sets := f.week2Sets(t)
	require.Len(t, sets, 3)
	for i, want := range []int{9, 11, 13} {
		assert.Equal(t, want, sets[i].Reps)
		require.NotNil(t, sets[i].Weight)
		assert.Equal(t, 100.0, *sets[i].Weight)
	}
}

func TestEngine_Apply_Idempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.slot(t, 1, 1, 5, 5)
	f.slot(t, 2, 1)
	workoutID := f.workout(t, 5, 4)

	first, err := f.engine.Apply(context.Background(), workoutID)
	require.NoError(t, err)
	firstSets := f.week2Sets(t)

	second, err := f.engine.Apply(context.Background(), workoutID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)

	assert.Equal(t, firstSets, f.week2Sets(t))
	assert.Equal(t, 6, firstSets[0].Reps)
	assert.Equal(t, 5, firstSets[1].Reps)
}

func TestEngine_Apply_IncompleteDayWritesNothing(t *testing.T) {
	f := newEngineFixture(t)
	f.slot(t, 1, 1, 8, 10, 12)
	f.slot(t, 2, 1, 1, 1, 1)
	before := f.week2Sets(t)
	countsBefore := f.store.Counts()

	workoutID := f.workout(t, 8, 10)
	countsBefore["workout"]++
	countsBefore["workout_exercise"]++
	countsBefore["workout_set"] += 2

	result, err := f.engine.Apply(context.Background(), workoutID)
	require.NoError(t, err)
	assert.Equal(t, progression.OutcomeSkippedIncomplete, result.Outcome)
	assert.Zero(t, result.Inserted+result.Updated)

	assert.Equal(t, before, f.week2Sets(t))
	assert.Equal(t, countsBefore, f.store.Counts())
}

func TestEngine_Apply_MissingNextWeekSlotIsSkipped(t *testing.T) {
	f := newEngineFixture(t)
	f.slot(t, 1, 1, 8)

	workoutID := f.workout(t, 8)
	result, err := f.engine.Apply(context.Background(), workoutID)
	require.NoError(t, err)
	assert.Equal(t, progression.OutcomeApplied, result.Outcome)
	assert.Equal(t, 1, result.SkippedSlots)
	assert.Zero(t, result.Inserted)

	// next week's day exists now, still without exercise slots
	weekPlan, err := f.builder.WeekPlan(context.Background(), f.program, 2)
	require.NoError(t, err)
	require.Len(t, weekPlan.Days, 1)
	assert.Empty(t, weekPlan.Days[0].Exercises)
}

func TestEngine_Apply_NoPlannedSets(t *testing.T) {
	f := newEngineFixture(t)
	f.slot(t, 1, 1)

	workoutID := f.workout(t)
	result, err := f.engine.Apply(context.Background(), workoutID)
	require.NoError(t, err)
	assert.Equal(t, progression.OutcomeNoPlannedSets, result.Outcome)
	// week 2 is not touched
	assert.Equal(t, 1, f.store.Counts()["program_week"])
}

func TestEngine_Apply_FailureRollsBack(t *testing.T) {
	f := newEngineFixture(t)
	f.slot(t, 1, 1, 8, 8)
	f.slot(t, 2, 1, 3)
	workoutID := f.workout(t, 8, 8)
	before := f.week2Sets(t)

	// the first set is written, the second one fails
	f.store.FailAfter("UpsertPlannedSetTargets", 1, errors.New("connection reset"))
	result, err := f.engine.Apply(context.Background(), workoutID)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, before, f.week2Sets(t))
	require.Len(t, before, 1)
	assert.Equal(t, 3, before[0].Reps)
}

func TestEngine_Apply_UnknownWorkout(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Apply(context.Background(), 777)
	require.Error(t, err)
	assert.ErrorIs(t, err, gymplan.ErrNotFound)
}
