//go:build integration_test || all_tests

package internal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2beens/gymplan/internal/config"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/gymplan/catalog"
	"github.com/2beens/gymplan/internal/gymplan/plan"
	"github.com/2beens/gymplan/internal/gymplan/progression"
	"github.com/2beens/gymplan/internal/gymplan/report"
	"github.com/2beens/gymplan/internal/gymplan/workout"
	"github.com/2beens/gymplan/internal/testinternals"

	"github.com/stretchr/testify/suite"
)

const (
	testOwner      = 7
	testOtherOwner = 8
)

const pushPullPlan = `{
  "title": "Push Pull",
  "repeat_until_week": 2,
  "weeks": [
    {
      "week_number": 1,
      "days": [
        {
          "day_of_week": 1,
          "exercises": [
            {
              "name": "Bench Press",
              "muscle_group": "chest",
              "planned_sets": [
                {"reps": 8, "weight": 60},
                {"reps": 8, "weight": 60}
              ]
            },
            {
              "name": "Barbell Row",
              "muscle_group": "back",
              "planned_sets": [
                {"reps": 10, "weight": 50},
                {"reps": 10, "weight": 50},
                {"reps": 10, "weight": 50}
              ]
            }
          ]
        }
      ]
    }
  ]
}`

type CoreTestSuite struct {
	suite.Suite

	pg   *testinternals.Postgres
	core *Core
}

func TestCoreTestSuite(t *testing.T) {
	suite.Run(t, new(CoreTestSuite))
}

func (s *CoreTestSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := testinternals.NewPostgres(ctx)
	s.Require().NoError(err)
	s.pg = pg

	s.core = NewCoreWithPool(pg.Pool, &config.Config{
		Environment:         "test",
		PostgresDBName:      "gymplan_test",
		MetricsNamespace:    "gymplan",
		CatalogCacheSizeMB:  1,
		CatalogCacheTTLSecs: 60,
	})
}

func (s *CoreTestSuite) TearDownSuite() {
	if s.core != nil {
		s.core.Shutdown()
	}
	if s.pg != nil {
		s.pg.Cleanup()
	}
}

func (s *CoreTestSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
	// catalog cache would outlive the truncate
	s.core.Catalog = catalog.NewService(catalog.NewRepo(s.pg.Pool), 1, 60)
	s.core.Importer = plan.NewImporter(s.core.Builder, s.core.Catalog, s.core.metricsManager)
}

func (s *CoreTestSuite) importPlan(ctx context.Context) *plan.ImportResult {
	doc, err := plan.ParsePlanDocument(strings.NewReader(pushPullPlan))
	s.Require().NoError(err)
	result, err := s.core.Importer.Import(ctx, testOwner, *doc)
	s.Require().NoError(err)
	return result
}

func (s *CoreTestSuite) logDay(ctx context.Context, workoutID int, week *plan.WeekPlan) {
	for _, ex := range week.Days[0].Exercises {
		for _, ps := range ex.Sets {
			_, err := s.core.Recorder.LogSet(ctx, workout.LogSetParams{
				WorkoutID:    workoutID,
				Position:     ex.DayExercise.Position,
				PlannedSetID: ps.ID,
				SetNumber:    ps.SetNumber,
				Reps:         ps.Reps,
				Weight:       ps.Weight,
			})
			s.Require().NoError(err)
		}
	}
}

func (s *CoreTestSuite) TestProgramScenario() {
	ctx := context.Background()
	before, err := s.core.MetricsSnapshot()
	s.Require().NoError(err)

	imported := s.importPlan(ctx)
	s.Equal(2, imported.Weeks)
	s.Equal(2, imported.Days)
	s.Equal(4, imported.DayExercises)
	s.Equal(10, imported.PlannedSets)
	s.Equal(2, imported.ExercisesCreated)
	programID := imported.Program.ID

	week1, err := s.core.Builder.WeekPlan(ctx, programID, 1)
	s.Require().NoError(err)
	s.Require().Len(week1.Days, 1)
	s.Require().Len(week1.Days[0].Exercises, 2)

	w, err := s.core.Recorder.StartWorkout(ctx, testOwner, programID, 1, 1)
	s.Require().NoError(err)
	again, err := s.core.Recorder.StartWorkout(ctx, testOwner, programID, 1, 1)
	s.Require().NoError(err)
	s.Equal(w.ID, again.ID)

	s.logDay(ctx, w.ID, week1)

	finished, err := s.core.Recorder.FinishWorkout(ctx, w.ID, nil)
	s.Require().NoError(err)
	s.Require().NoError(finished.ProgressionErr)
	s.Require().NotNil(finished.Progression)
	s.Equal(progression.OutcomeApplied, finished.Progression.Outcome)
	s.Equal(2, finished.Progression.NextWeek)
	s.Equal(5, finished.Progression.Updated)

	week2, err := s.core.Builder.WeekPlan(ctx, programID, 2)
	s.Require().NoError(err)
	for _, ex := range week2.Days[0].Exercises {
		for i, ps := range ex.Sets {
			previous := week1.Days[0].Exercises[ex.DayExercise.Position-1].Sets[i]
			s.Equal(previous.Reps+1, ps.Reps)
			s.Equal(*previous.Weight, *ps.Weight)
		}
	}

	// finishing again converges to the same targets
	refinished, err := s.core.Recorder.FinishWorkout(ctx, w.ID, nil)
	s.Require().NoError(err)
	s.Equal(finished.Workout.FinishedAt.Unix(), refinished.Workout.FinishedAt.Unix())
	week2Again, err := s.core.Builder.WeekPlan(ctx, programID, 2)
	s.Require().NoError(err)
	s.Equal(week2, week2Again)

	planned, err := s.core.Projector.TotalPlannedSets(ctx, programID, 1)
	s.Require().NoError(err)
	s.Equal(5, planned)
	actual, err := s.core.Projector.TotalActualSets(ctx, programID, 1)
	s.Require().NoError(err)
	s.Equal(5, actual)

	status, err := s.core.Projector.DayStatus(ctx, programID, 1, 1, testOwner)
	s.Require().NoError(err)
	s.True(status.Completed)
	s.Equal(100.0, status.CompletionPct)
	s.Require().NotNil(status.LatestWorkout)
	s.Equal(w.ID, status.LatestWorkout.ID)

	values, err := s.core.MetricsSnapshot()
	s.Require().NoError(err)
	s.Equal(1.0, values["gymplan_core_workouts_started"]-before["gymplan_core_workouts_started"])
	applied := `gymplan_core_progression_runs{outcome="applied"}`
	s.Equal(2.0, values[applied]-before[applied])
}

func (s *CoreTestSuite) TestConcurrentLogSetStaysBounded() {
	ctx := context.Background()

	programID := s.importPlan(ctx).Program.ID
	week1, err := s.core.Builder.WeekPlan(ctx, programID, 1)
	s.Require().NoError(err)
	row := week1.Days[0].Exercises[1]
	s.Require().Len(row.Sets, 3)

	w, err := s.core.Recorder.StartWorkout(ctx, testOwner, programID, 1, 1)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		ps := row.Sets[i%3]
		wg.Add(1)
		go func(reps int) {
			defer wg.Done()
			_, err := s.core.Recorder.LogSet(ctx, workout.LogSetParams{
				WorkoutID:    w.ID,
				Position:     row.DayExercise.Position,
				PlannedSetID: ps.ID,
				SetNumber:    ps.SetNumber,
				Reps:         reps,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	count, err := s.pg.Count(ctx, "workout_set")
	s.Require().NoError(err)
	s.Equal(3, count)

	session, err := s.core.Recorder.GetSession(ctx, w.ID)
	s.Require().NoError(err)
	s.False(session.Complete())
	for _, set := range session.Exercises[1].Sets {
		s.NotNil(set.Actual)
	}
}

func (s *CoreTestSuite) TestInvariantViolationsAreRejected() {
	ctx := context.Background()

	programID := s.importPlan(ctx).Program.ID
	week1, err := s.core.Builder.WeekPlan(ctx, programID, 1)
	s.Require().NoError(err)
	bench := week1.Days[0].Exercises[0]
	row := week1.Days[0].Exercises[1]

	w, err := s.core.Recorder.StartWorkout(ctx, testOwner, programID, 1, 1)
	s.Require().NoError(err)

	_, err = s.core.Recorder.LogSet(ctx, workout.LogSetParams{
		WorkoutID:    w.ID,
		Position:     bench.DayExercise.Position,
		PlannedSetID: bench.Sets[0].ID,
		SetNumber:    2,
		Reps:         8,
	})
	s.ErrorIs(err, gymplan.ErrInvariantViolation)
	rule, _ := gymplan.ViolatedRule(err)
	s.Equal(gymplan.RuleNumberAgreement, rule)

	_, err = s.core.Recorder.LogSet(ctx, workout.LogSetParams{
		WorkoutID:    w.ID,
		Position:     bench.DayExercise.Position,
		PlannedSetID: row.Sets[0].ID,
		SetNumber:    1,
		Reps:         8,
	})
	rule, _ = gymplan.ViolatedRule(err)
	s.Equal(gymplan.RuleLineageAgreement, rule)

	count, err := s.pg.Count(ctx, "workout_set")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *CoreTestSuite) TestStoreConstraintsMapToDomainErrors() {
	ctx := context.Background()

	_, err := s.core.Catalog.CreateExercise(ctx, catalog.CreateExerciseParams{
		Name: "Deadlift", MuscleGroup: "back", IsGlobal: true,
	})
	s.Require().NoError(err)
	_, err = s.core.Catalog.CreateExercise(ctx, catalog.CreateExerciseParams{
		Name: "Deadlift", MuscleGroup: "legs", IsGlobal: true,
	})
	s.ErrorIs(err, gymplan.ErrConflict)

	owner := testOwner
	own, err := s.core.Catalog.CreateExercise(ctx, catalog.CreateExerciseParams{
		OwnerUserID: &owner, Name: "Deadlift", MuscleGroup: "back",
	})
	s.Require().NoError(err)

	other := testOtherOwner
	visible, err := s.core.Catalog.ListForUser(ctx, &other)
	s.Require().NoError(err)
	s.Len(visible, 1)
	visible, err = s.core.Catalog.ListForUser(ctx, &owner)
	s.Require().NoError(err)
	s.Len(visible, 2)

	_, err = s.core.Builder.EnsureWeek(ctx, 9999, 1)
	s.ErrorIs(err, gymplan.ErrNotFound)

	program, err := s.core.Builder.CreateProgram(ctx, testOwner, "Deadlift Only", nil)
	s.Require().NoError(err)
	_, err = s.core.Builder.AddDayExercise(ctx, plan.AddDayExerciseParams{
		ProgramID: program.ID, WeekNumber: 1, DayOfWeek: 3, ExerciseID: 9999, Position: 1,
	})
	var notFound *gymplan.NotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal("exercise", notFound.Entity)

	_, err = s.core.Builder.AddDayExercise(ctx, plan.AddDayExerciseParams{
		ProgramID: program.ID, WeekNumber: 1, DayOfWeek: 3, ExerciseID: own.ID, Position: 1,
	})
	s.Require().NoError(err)
	_, err = s.core.Builder.AddPlannedSet(ctx, plan.AddPlannedSetParams{
		ProgramID: program.ID, WeekNumber: 1, DayOfWeek: 3, Position: 1, SetNumber: 1, Reps: 5,
	})
	s.Require().NoError(err)
	_, err = s.core.Builder.AddPlannedSet(ctx, plan.AddPlannedSetParams{
		ProgramID: program.ID, WeekNumber: 1, DayOfWeek: 3, Position: 1, SetNumber: 1, Reps: 6,
	})
	s.ErrorIs(err, gymplan.ErrConflict)

	_, err = s.core.Recorder.StartWorkout(ctx, testOwner, program.ID, 1, 5)
	s.ErrorIs(err, gymplan.ErrNotFound)
}

func (s *CoreTestSuite) TestReports() {
	ctx := context.Background()

	programID := s.importPlan(ctx).Program.ID
	benchID := 0
	for week := 1; week <= 2; week++ {
		wp, err := s.core.Builder.WeekPlan(ctx, programID, week)
		s.Require().NoError(err)
		benchID = wp.Days[0].Exercises[0].DayExercise.ExerciseID

		w, err := s.core.Recorder.StartWorkout(ctx, testOwner, programID, week, 1)
		s.Require().NoError(err)
		s.logDay(ctx, w.ID, wp)
		_, err = s.core.Recorder.FinishWorkout(ctx, w.ID, nil)
		s.Require().NoError(err)
	}

	groups, err := s.core.Projector.SetsByMuscleGroup(ctx, programID, 1)
	s.Require().NoError(err)
	s.Equal([]report.MuscleGroupSets{
		{MuscleGroup: "back", Sets: 3},
		{MuscleGroup: "chest", Sets: 2},
	}, groups)

	trend, err := s.core.Projector.ExerciseTrend(ctx, programID, benchID)
	s.Require().NoError(err)
	s.Require().Len(trend, 2)
	s.Equal(8.0, trend[0].AvgReps)
	s.Equal(9.0, trend[1].AvgReps)
	s.Require().NotNil(trend[1].AvgWeight)
	s.Equal(60.0, *trend[1].AvgWeight)

	status, err := s.core.Projector.DayStatus(ctx, programID, 2, 1, testOtherOwner)
	s.Require().NoError(err)
	s.Nil(status.LatestWorkout)
	s.Equal(5, status.PlannedSets)
	s.Zero(status.CompletionPct)

	_, err = s.core.Projector.DayStatus(ctx, programID, 2, 6, testOwner)
	s.ErrorIs(err, gymplan.ErrNotFound)
}
