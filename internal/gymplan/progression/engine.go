package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/metrics"
	"github.com/2beens/gymplan/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type Outcome string

const (
	OutcomeApplied           Outcome = metrics.ProgressionApplied
	OutcomeSkippedIncomplete Outcome = metrics.ProgressionSkippedIncomplete
	OutcomeNoPlannedSets     Outcome = metrics.ProgressionNoPlannedSets
)

// Result describes one progression run. Counts refer to next week's planned sets.
type Result struct {
	Outcome      Outcome `json:"outcome"`
	ProgramID    int     `json:"programId"`
	NextWeek     int     `json:"nextWeek"`
	DayOfWeek    int     `json:"dayOfWeek"`
	Inserted     int     `json:"inserted"`
	Updated      int     `json:"updated"`
	SkippedSlots int     `json:"skippedSlots"`
}

// Target is the planned work derived for one set of next week's day.
type Target struct {
	Position  int
	SetNumber int
	Reps      int
	Weight    *float64
}

// NextTargets derives next week's targets from logged actuals: one more rep than
// performed (at least 1), at the weight actually used. Rows without an actual are ignored.
func NextTargets(rows []gymplan.PlannedActual) []Target {
	targets := make([]Target, 0, len(rows))
	for _, row := range rows {
		if !row.Logged() {
			continue
		}
		targets = append(targets, Target{
			Position:  row.Position,
			SetNumber: row.SetNumber,
			Reps:      max(1, *row.Reps+1),
			Weight:    row.Weight,
		})
	}
	return targets
}

type txRunner interface {
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type workoutsRepo interface {
	GetWorkout(ctx context.Context, q db.Querier, id int) (*gymplan.Workout, error)
	ListDayActuals(ctx context.Context, q db.Querier, workoutID, dayID int) ([]gymplan.PlannedActual, error)
}

type planRepo interface {
	GetDayLocation(ctx context.Context, q db.Querier, dayID int) (*gymplan.DayLocation, error)
	GetDayExerciseAt(ctx context.Context, q db.Querier, dayID, position int) (*gymplan.ProgramDayExercise, error)
	UpsertPlannedSetTargets(ctx context.Context, q db.Querier, pdeID, setNumber, reps int, weight *float64) (bool, error)
}

type dayEnsurer interface {
	EnsureDayWith(ctx context.Context, q db.Querier, programID, weekNumber, dayOfWeek int) (*gymplan.ProgramDay, error)
}

// Engine advances a program by deriving the same day one week later from a
// completed workout. Running it again for the same workout converges to the same rows.
type Engine struct {
	tx       txRunner
	workouts workoutsRepo
	plan     planRepo
	days     dayEnsurer
	metrics  *metrics.Manager
}

func NewEngine(
	tx txRunner,
	workouts workoutsRepo,
	plan planRepo,
	days dayEnsurer,
	metricsManager *metrics.Manager,
) *Engine {
	return &Engine{
		tx:       tx,
		workouts: workouts,
		plan:     plan,
		days:     days,
		metrics:  metricsManager,
	}
}

// Apply runs the whole derivation in one unit of work. An incomplete day
// writes nothing and is reported through the outcome, not as an error.
func (e *Engine) Apply(ctx context.Context, workoutID int) (result *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.gymplan.progression.apply")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout", workoutID))

	start := time.Now()
	err = e.tx.InTx(ctx, func(q db.Querier) error {
		result, err = e.apply(ctx, q, workoutID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("progression for workout %d: %w", workoutID, err)
	}
	e.metrics.HistProgressionDuration.Observe(time.Since(start).Seconds())
	e.metrics.CounterProgressionRuns.WithLabelValues(string(result.Outcome)).Inc()
	e.metrics.CounterProgressionSkipped.Add(float64(result.SkippedSlots))

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	switch result.Outcome {
	case OutcomeApplied:
		log.Infof(
			"progression: workout %d -> program %d week %d day %d: inserted=%d updated=%d skipped slots=%d",
			workoutID, result.ProgramID, result.NextWeek, result.DayOfWeek,
			result.Inserted, result.Updated, result.SkippedSlots,
		)
	default:
		log.Infof("progression: workout %d skipped: %s", workoutID, result.Outcome)
	}
	return result, nil
}

func (e *Engine) apply(ctx context.Context, q db.Querier, workoutID int) (*Result, error) {
	workout, err := e.workouts.GetWorkout(ctx, q, workoutID)
	if err != nil {
		return nil, err
	}
	loc, err := e.plan.GetDayLocation(ctx, q, workout.ProgramDayID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ProgramID: loc.ProgramID,
		NextWeek:  loc.WeekNumber + 1,
		DayOfWeek: loc.DayOfWeek,
	}

	rows, err := e.workouts.ListDayActuals(ctx, q, workout.ID, workout.ProgramDayID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		result.Outcome = OutcomeNoPlannedSets
		return result, nil
	}
	for _, row := range rows {
		if !row.Logged() {
			result.Outcome = OutcomeSkippedIncomplete
			return result, nil
		}
	}

	nextDay, err := e.days.EnsureDayWith(ctx, q, loc.ProgramID, result.NextWeek, loc.DayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("ensure next week day: %w", err)
	}

	skipped := make(map[int]bool)
	for _, target := range NextTargets(rows) {
		if skipped[target.Position] {
			continue
		}
		pde, err := e.plan.GetDayExerciseAt(ctx, q, nextDay.ID, target.Position)
		if errors.Is(err, gymplan.ErrNotFound) {
			skipped[target.Position] = true
			continue
		}
		if err != nil {
			return nil, err
		}

		inserted, err := e.plan.UpsertPlannedSetTargets(ctx, q, pde.ID, target.SetNumber, target.Reps, target.Weight)
		if err != nil {
			return nil, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	result.SkippedSlots = len(skipped)
	result.Outcome = OutcomeApplied
	return result, nil
}
