package workout

import (
	"context"
	"errors"
	"time"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/gymplan/progression"
	"github.com/2beens/gymplan/internal/telemetry/metrics"
	"github.com/2beens/gymplan/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	opInsert = "insert"
	opUpdate = "update"
)

type txRunner interface {
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type planRepo interface {
	FindDay(ctx context.Context, q db.Querier, programID, weekNumber, dayOfWeek int) (*gymplan.ProgramDay, error)
	GetDayLocation(ctx context.Context, q db.Querier, dayID int) (*gymplan.DayLocation, error)
	GetDayExerciseAt(ctx context.Context, q db.Querier, dayID, position int) (*gymplan.ProgramDayExercise, error)
	ListDayExercises(ctx context.Context, q db.Querier, dayID int) ([]gymplan.ProgramDayExercise, error)
	GetPlannedSet(ctx context.Context, q db.Querier, id int) (*gymplan.PlannedSet, error)
	ListPlannedSets(ctx context.Context, q db.Querier, pdeID int) ([]gymplan.PlannedSet, error)
	CountPlannedSets(ctx context.Context, q db.Querier, pdeID int) (int, error)
}

type workoutsRepo interface {
	CreateOpenWorkout(ctx context.Context, q db.Querier, ownerUserID, dayID int, startedAt time.Time) (*gymplan.Workout, bool, error)
	GetWorkout(ctx context.Context, q db.Querier, id int) (*gymplan.Workout, error)
	FinishWorkout(ctx context.Context, q db.Querier, id int, finishedAt time.Time, notes *string) (*gymplan.Workout, error)
	EnsureWorkoutExercise(ctx context.Context, q db.Querier, workoutID, pdeID, position int) (*gymplan.WorkoutExercise, error)
	LockWorkoutExercise(ctx context.Context, q db.Querier, id int) (*gymplan.WorkoutExercise, error)
	ListWorkoutExercises(ctx context.Context, q db.Querier, workoutID int) ([]gymplan.WorkoutExercise, error)
	GetWorkoutSet(ctx context.Context, q db.Querier, wexID, plannedSetID int) (*gymplan.WorkoutSet, error)
	CountWorkoutSets(ctx context.Context, q db.Querier, wexID int) (int, error)
	InsertWorkoutSet(ctx context.Context, q db.Querier, ws gymplan.WorkoutSet) (*gymplan.WorkoutSet, error)
	UpdateWorkoutSet(ctx context.Context, q db.Querier, ws gymplan.WorkoutSet) (*gymplan.WorkoutSet, error)
	ListWorkoutSets(ctx context.Context, q db.Querier, wexID int) ([]gymplan.WorkoutSet, error)
}

type LogSetParams struct {
	WorkoutID    int
	Position     int
	PlannedSetID int
	SetNumber    int
	Reps         int
	Weight       *float64
	RPE          *float64
	RestSeconds  *int
}

// FinishResult is the finished workout plus the outcome of the progression it triggered.
// ProgressionErr is set when progression failed; the finish itself still stands.
type FinishResult struct {
	Workout        gymplan.Workout     `json:"workout"`
	Progression    *progression.Result `json:"progression,omitempty"`
	ProgressionErr error               `json:"-"`
}

type Session struct {
	Workout   gymplan.Workout     `json:"workout"`
	Location  gymplan.DayLocation `json:"location"`
	Exercises []SessionExercise   `json:"exercises"`
}

type SessionExercise struct {
	DayExercise       gymplan.ProgramDayExercise `json:"dayExercise"`
	WorkoutExerciseID *int                       `json:"workoutExerciseId,omitempty"`
	Sets              []SessionSet               `json:"sets"`
}

type SessionSet struct {
	Planned gymplan.PlannedSet  `json:"planned"`
	Actual  *gymplan.WorkoutSet `json:"actual,omitempty"`
}

// Complete reports whether every planned set of the day has been logged.
func (s Session) Complete() bool {
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			if set.Actual == nil {
				return false
			}
		}
	}
	return true
}

// Recorder records what was actually done against a program day.
type Recorder struct {
	tx          txRunner
	plan        planRepo
	workouts    workoutsRepo
	progression progressionApplier
	metrics     *metrics.Manager
	now         func() time.Time
}

func NewRecorder(
	tx txRunner,
	plan planRepo,
	workouts workoutsRepo,
	progression progressionApplier,
	metricsManager *metrics.Manager,
) *Recorder {
	return &Recorder{
		tx:          tx,
		plan:        plan,
		workouts:    workouts,
		progression: progression,
		metrics:     metricsManager,
		now:         time.Now,
	}
}

// StartWorkout returns the user's open workout for the day, or opens a new one
// with a workout exercise for every exercise slot the day has right now.
func (r *Recorder) StartWorkout(
	ctx context.Context,
	ownerUserID, programID, weekNumber, dayOfWeek int,
) (workout *gymplan.Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "recorder.gymplan.startWorkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("owner", ownerUserID),
		attribute.Int("program", programID),
		attribute.Int("week", weekNumber),
		attribute.Int("day", dayOfWeek),
	)

	created := false
	err = r.tx.InTx(ctx, func(q db.Querier) error {
		day, err := r.plan.FindDay(ctx, q, programID, weekNumber, dayOfWeek)
		if err != nil {
			return err
		}

		workout, created, err = r.workouts.CreateOpenWorkout(ctx, q, ownerUserID, day.ID, r.now())
		if err != nil || !created {
			return err
		}

		pdes, err := r.plan.ListDayExercises(ctx, q, day.ID)
		if err != nil {
			return err
		}
		for _, pde := range pdes {
			if _, err := r.workouts.EnsureWorkoutExercise(ctx, q, workout.ID, pde.ID, pde.Position); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		r.metrics.CounterWorkoutsStarted.Inc()
		log.Debugf("workout: %d started by user %d [program %d, week %d, day %d]",
			workout.ID, ownerUserID, programID, weekNumber, dayOfWeek)
	}
	return workout, nil
}

// LogSet writes the actual for one planned set, replacing an earlier log of the
// same planned set. The write is rejected with an *gymplan.InvariantViolation
// when it would make the workout disagree with its plan.
func (r *Recorder) LogSet(ctx context.Context, params LogSetParams) (ws *gymplan.WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "recorder.gymplan.logSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("workout", params.WorkoutID),
		attribute.Int("position", params.Position),
		attribute.Int("planned_set", params.PlannedSetID),
		attribute.Int("set", params.SetNumber),
	)

	if params.Position <= 0 {
		return nil, gymplan.Invalid("position", "must be positive")
	}
	if params.Reps < 0 {
		return nil, gymplan.Invalid("reps", "must not be negative")
	}

	op := opInsert
	err = r.tx.InTx(ctx, func(q db.Querier) error {
		ws, op, err = r.logSet(ctx, q, params)
		return err
	})
	if err != nil {
		if rule, ok := gymplan.ViolatedRule(err); ok {
			r.metrics.CounterInvariantViolations.WithLabelValues(string(rule)).Inc()
			log.Warnf("workout: %d rejected set [position %d, planned set %d]: %s",
				params.WorkoutID, params.Position, params.PlannedSetID, err)
		}
		return nil, err
	}

	r.metrics.CounterSetsLogged.WithLabelValues(op).Inc()
	return ws, nil
}

func (r *Recorder) logSet(ctx context.Context, q db.Querier, params LogSetParams) (*gymplan.WorkoutSet, string, error) {
	workout, err := r.workouts.GetWorkout(ctx, q, params.WorkoutID)
	if err != nil {
		return nil, "", err
	}

	pde, err := r.plan.GetDayExerciseAt(ctx, q, workout.ProgramDayID, params.Position)
	if err != nil {
		return nil, "", err
	}

	wex, err := r.workouts.EnsureWorkoutExercise(ctx, q, workout.ID, pde.ID, pde.Position)
	if err != nil {
		return nil, "", err
	}
	// concurrent writers of the same workout exercise queue up here
	wex, err = r.workouts.LockWorkoutExercise(ctx, q, wex.ID)
	if err != nil {
		return nil, "", err
	}

	planned, err := r.plan.GetPlannedSet(ctx, q, params.PlannedSetID)
	if err != nil {
		return nil, "", err
	}

	existing, err := r.workouts.GetWorkoutSet(ctx, q, wex.ID, planned.ID)
	if err != nil && !errors.Is(err, gymplan.ErrNotFound) {
		return nil, "", err
	}

	logged, err := r.workouts.CountWorkoutSets(ctx, q, wex.ID)
	if err != nil {
		return nil, "", err
	}
	plannedCount, err := r.plan.CountPlannedSets(ctx, q, wex.ProgramDayExerciseID)
	if err != nil {
		return nil, "", err
	}

	if err := CheckInvariants(
		ProposedSet{
			SetNumber:    params.SetNumber,
			PlannedSetID: planned.ID,
			Replaces:     existing != nil,
		},
		LineageState{
			WorkoutExerciseID:    wex.ID,
			WorkoutExercisePDEID: wex.ProgramDayExerciseID,
			PlannedSetPDEID:      planned.ProgramDayExerciseID,
			PlannedSetNumber:     planned.SetNumber,
			LoggedSets:           logged,
			PlannedSets:          plannedCount,
		},
	); err != nil {
		return nil, "", err
	}

	set := gymplan.WorkoutSet{
		WorkoutExerciseID: wex.ID,
		PlannedSetID:      planned.ID,
		SetNumber:         params.SetNumber,
		Reps:              params.Reps,
		Weight:            params.Weight,
		RPE:               params.RPE,
		RestSeconds:       params.RestSeconds,
	}
	if existing != nil {
		set.ID = existing.ID
		updated, err := r.workouts.UpdateWorkoutSet(ctx, q, set)
		return updated, opUpdate, err
	}
	inserted, err := r.workouts.InsertWorkoutSet(ctx, q, set)
	return inserted, opInsert, err
}

// FinishWorkout stamps the finish time and notes, then derives next week's plan.
// A progression failure never fails the finish, it is reported in FinishResult.
func (r *Recorder) FinishWorkout(ctx context.Context, workoutID int, notes *string) (result *FinishResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "recorder.gymplan.finishWorkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout", workoutID))

	var workout *gymplan.Workout
	err = r.tx.InTx(ctx, func(q db.Querier) error {
		workout, err = r.workouts.FinishWorkout(ctx, q, workoutID, r.now(), notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.metrics.CounterWorkoutsFinished.Inc()

	result = &FinishResult{
		Workout: *workout,
	}

	progressionResult, err := r.progression.Apply(ctx, workout.ID)
	if err != nil {
		r.metrics.CounterProgressionRuns.WithLabelValues(metrics.ProgressionFailed).Inc()
		log.Errorf("workout: %d finished, progression failed: %s", workout.ID, err)
		span.SetAttributes(attribute.String("progression.error", err.Error()))
		result.ProgressionErr = err
		return result, nil
	}

	result.Progression = progressionResult
	return result, nil
}

// GetSession returns the workout with the exercise slots it was started with, every
// planned set of those slots and the actual logged against it, if any. Slots added to
// the day later are not part of the session.
func (r *Recorder) GetSession(ctx context.Context, workoutID int) (session *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "recorder.gymplan.getSession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = r.tx.InTx(ctx, func(q db.Querier) error {
		workout, err := r.workouts.GetWorkout(ctx, q, workoutID)
		if err != nil {
			return err
		}
		loc, err := r.plan.GetDayLocation(ctx, q, workout.ProgramDayID)
		if err != nil {
			return err
		}
		pdes, err := r.plan.ListDayExercises(ctx, q, workout.ProgramDayID)
		if err != nil {
			return err
		}
		pdeByID := make(map[int]gymplan.ProgramDayExercise, len(pdes))
		for _, pde := range pdes {
			pdeByID[pde.ID] = pde
		}
		wexes, err := r.workouts.ListWorkoutExercises(ctx, q, workout.ID)
		if err != nil {
			return err
		}

		session = &Session{
			Workout:   *workout,
			Location:  *loc,
			Exercises: make([]SessionExercise, 0, len(wexes)),
		}
		for _, wex := range wexes {
			pde, ok := pdeByID[wex.ProgramDayExerciseID]
			if !ok {
				return gymplan.NotFound("program_day_exercise", wex.ProgramDayExerciseID)
			}
			planned, err := r.plan.ListPlannedSets(ctx, q, pde.ID)
			if err != nil {
				return err
			}
			logged, err := r.workouts.ListWorkoutSets(ctx, q, wex.ID)
			if err != nil {
				return err
			}
			actuals := make(map[int]gymplan.WorkoutSet, len(logged))
			for _, ws := range logged {
				actuals[ws.PlannedSetID] = ws
			}

			exercise := SessionExercise{
				DayExercise:       pde,
				WorkoutExerciseID: &wex.ID,
				Sets:              make([]SessionSet, 0, len(planned)),
			}
			for _, ps := range planned {
				set := SessionSet{Planned: ps}
				if ws, ok := actuals[ps.ID]; ok {
					set.Actual = &ws
				}
				exercise.Sets = append(exercise.Sets, set)
			}
			session.Exercises = append(session.Exercises, exercise)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
