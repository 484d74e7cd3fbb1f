package workout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/tracing"
	"github.com/2beens/gymplan/pkg"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	workoutColumns    = `id, owner_user_id, program_day_id, started_at, finished_at, notes`
	wexColumns        = `id, workout_id, program_day_exercise_id, position`
	workoutSetColumns = `id, workout_exercise_id, planned_set_id, set_number, reps, weight, rpe, rest_seconds`
)

// Repo is the postgres store of workouts and their logged sets.
type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

// CreateOpenWorkout opens a workout for the owner's day. When one is already open,
// that workout is returned and created is false.
func (r *Repo) CreateOpenWorkout(
	ctx context.Context,
	q db.Querier,
	ownerUserID, dayID int,
	startedAt time.Time,
) (_ *gymplan.Workout, created bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.workout.createOpen")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner", ownerUserID), attribute.Int("day", dayID))

	w, err := scanWorkout(q.QueryRow(
		ctx,
		`
			INSERT INTO workout (owner_user_id, program_day_id, started_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (owner_user_id, program_day_id) WHERE finished_at IS NULL DO NOTHING
			RETURNING `+workoutColumns,
		ownerUserID, dayID, startedAt,
	))
	if err == nil {
		return w, true, nil
	}
	if pkg.IsForeignKeyViolationError(err) {
		return nil, false, gymplan.NotFound("program_day", dayID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert workout: %w", err)
	}

	w, err = scanWorkout(q.QueryRow(
		ctx,
		`
			SELECT `+workoutColumns+`
			FROM workout
			WHERE owner_user_id = $1 AND program_day_id = $2 AND finished_at IS NULL
		`,
		ownerUserID, dayID,
	))
	if err != nil {
		return nil, false, fmt.Errorf("open workout [query row]: %w", err)
	}
	return w, false, nil
}

func (r *Repo) GetWorkout(ctx context.Context, q db.Querier, id int) (*gymplan.Workout, error) {
	w, err := scanWorkout(q.QueryRow(
		ctx,
		`SELECT `+workoutColumns+` FROM workout WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("workout", id)
	}
	if err != nil {
		return nil, fmt.Errorf("workout [query row]: %w", err)
	}
	return w, nil
}

// FinishWorkout keeps the first finish time. Notes are replaced only when given.
func (r *Repo) FinishWorkout(
	ctx context.Context,
	q db.Querier,
	id int,
	finishedAt time.Time,
	notes *string,
) (_ *gymplan.Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.workout.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout", id))

	w, err := scanWorkout(q.QueryRow(
		ctx,
		`
			UPDATE workout
			SET finished_at = COALESCE(finished_at, $2),
			    notes = COALESCE($3, notes)
			WHERE id = $1
			RETURNING `+workoutColumns,
		id, finishedAt, notes,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("workout", id)
	}
	if err != nil {
		return nil, fmt.Errorf("finish workout: %w", err)
	}
	return w, nil
}

func (r *Repo) EnsureWorkoutExercise(
	ctx context.Context,
	q db.Querier,
	workoutID, pdeID, position int,
) (*gymplan.WorkoutExercise, error) {
	if _, err := q.Exec(
		ctx,
		`
			INSERT INTO workout_exercise (workout_id, program_day_exercise_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (workout_id, program_day_exercise_id) DO NOTHING
		`,
		workoutID, pdeID, position,
	); err != nil {
		return nil, fmt.Errorf("insert workout exercise: %w", err)
	}

	wex, err := scanWorkoutExercise(q.QueryRow(
		ctx,
		`SELECT `+wexColumns+` FROM workout_exercise WHERE workout_id = $1 AND program_day_exercise_id = $2`,
		workoutID, pdeID,
	))
	if err != nil {
		return nil, fmt.Errorf("workout exercise [query row]: %w", err)
	}
	return wex, nil
}

// LockWorkoutExercise takes the row lock that serializes set writes of one workout exercise.
func (r *Repo) LockWorkoutExercise(ctx context.Context, q db.Querier, id int) (*gymplan.WorkoutExercise, error) {
	wex, err := scanWorkoutExercise(q.QueryRow(
		ctx,
		`SELECT `+wexColumns+` FROM workout_exercise WHERE id = $1 FOR UPDATE`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("workout_exercise", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock workout exercise: %w", err)
	}
	return wex, nil
}

func (r *Repo) ListWorkoutExercises(ctx context.Context, q db.Querier, workoutID int) ([]gymplan.WorkoutExercise, error) {
	rows, err := q.Query(
		ctx,
		`SELECT `+wexColumns+` FROM workout_exercise WHERE workout_id = $1 ORDER BY position, id`,
		workoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("workout exercises [query]: %w", err)
	}
	defer rows.Close()

	wexes := make([]gymplan.WorkoutExercise, 0)
	for rows.Next() {
		wex, err := scanWorkoutExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("workout exercises [rows scan]: %w", err)
		}
		wexes = append(wexes, *wex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workout exercises [rows error]: %w", err)
	}
	return wexes, nil
}

func (r *Repo) GetWorkoutSet(ctx context.Context, q db.Querier, wexID, plannedSetID int) (*gymplan.WorkoutSet, error) {
	ws, err := scanWorkoutSet(q.QueryRow(
		ctx,
		`SELECT `+workoutSetColumns+` FROM workout_set WHERE workout_exercise_id = $1 AND planned_set_id = $2`,
		wexID, plannedSetID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("workout_set", "wex", wexID, "planned_set", plannedSetID)
	}
	if err != nil {
		return nil, fmt.Errorf("workout set [query row]: %w", err)
	}
	return ws, nil
}

func (r *Repo) CountWorkoutSets(ctx context.Context, q db.Querier, wexID int) (int, error) {
	var count int
	if err := q.QueryRow(
		ctx,
		`SELECT count(*) FROM workout_set WHERE workout_exercise_id = $1`,
		wexID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count workout sets: %w", err)
	}
	return count, nil
}

func (r *Repo) InsertWorkoutSet(ctx context.Context, q db.Querier, ws gymplan.WorkoutSet) (_ *gymplan.WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.workout.insertSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	added, err := scanWorkoutSet(q.QueryRow(
		ctx,
		`
			INSERT INTO workout_set
			    (workout_exercise_id, planned_set_id, set_number, reps, weight, rpe, rest_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+workoutSetColumns,
		ws.WorkoutExerciseID, ws.PlannedSetID, ws.SetNumber, ws.Reps, ws.Weight, ws.RPE, ws.RestSeconds,
	))
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, gymplan.Conflict("workout_set", "wex", ws.WorkoutExerciseID, "planned_set", ws.PlannedSetID)
		}
		return nil, fmt.Errorf("insert workout set: %w", err)
	}
	return added, nil
}

func (r *Repo) UpdateWorkoutSet(ctx context.Context, q db.Querier, ws gymplan.WorkoutSet) (_ *gymplan.WorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.workout.updateSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", ws.ID))

	updated, err := scanWorkoutSet(q.QueryRow(
		ctx,
		`
			UPDATE workout_set
			SET set_number = $2, reps = $3, weight = $4, rpe = $5, rest_seconds = $6
			WHERE id = $1
			RETURNING `+workoutSetColumns,
		ws.ID, ws.SetNumber, ws.Reps, ws.Weight, ws.RPE, ws.RestSeconds,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("workout_set", ws.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("update workout set: %w", err)
	}
	return updated, nil
}

func (r *Repo) ListWorkoutSets(ctx context.Context, q db.Querier, wexID int) ([]gymplan.WorkoutSet, error) {
	rows, err := q.Query(
		ctx,
		`SELECT `+workoutSetColumns+` FROM workout_set WHERE workout_exercise_id = $1 ORDER BY set_number, id`,
		wexID,
	)
	if err != nil {
		return nil, fmt.Errorf("workout sets [query]: %w", err)
	}
	defer rows.Close()

	sets := make([]gymplan.WorkoutSet, 0)
	for rows.Next() {
		ws, err := scanWorkoutSet(rows)
		if err != nil {
			return nil, fmt.Errorf("workout sets [rows scan]: %w", err)
		}
		sets = append(sets, *ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workout sets [rows error]: %w", err)
	}
	return sets, nil
}

// ListDayActuals pairs every planned set of the day with the set logged for it in
// the workout, ordered by position and set number.
func (r *Repo) ListDayActuals(ctx context.Context, q db.Querier, workoutID, dayID int) (_ []gymplan.PlannedActual, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.workout.listDayActuals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := q.Query(
		ctx,
		`
			SELECT ps.id, pde.position, ps.set_number, ws.reps, ws.weight
			FROM program_day_exercise pde
			JOIN planned_set ps ON ps.program_day_exercise_id = pde.id
			LEFT JOIN workout_exercise we
			    ON we.program_day_exercise_id = pde.id AND we.workout_id = $1
			LEFT JOIN workout_set ws
			    ON ws.workout_exercise_id = we.id AND ws.planned_set_id = ps.id
			WHERE pde.program_day_id = $2
			ORDER BY pde.position, ps.set_number
		`,
		workoutID, dayID,
	)
	if err != nil {
		return nil, fmt.Errorf("day actuals [query]: %w", err)
	}
	defer rows.Close()

	actuals := make([]gymplan.PlannedActual, 0)
	for rows.Next() {
		var pa gymplan.PlannedActual
		if err := rows.Scan(&pa.PlannedSetID, &pa.Position, &pa.SetNumber, &pa.Reps, &pa.Weight); err != nil {
			return nil, fmt.Errorf("day actuals [rows scan]: %w", err)
		}
		actuals = append(actuals, pa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("day actuals [rows error]: %w", err)
	}
	span.SetAttributes(attribute.Int("rows", len(actuals)))
	return actuals, nil
}

func scanWorkout(row pgx.Row) (*gymplan.Workout, error) {
	var w gymplan.Workout
	if err := row.Scan(&w.ID, &w.OwnerUserID, &w.ProgramDayID, &w.StartedAt, &w.FinishedAt, &w.Notes); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWorkoutExercise(row pgx.Row) (*gymplan.WorkoutExercise, error) {
	var wex gymplan.WorkoutExercise
	if err := row.Scan(&wex.ID, &wex.WorkoutID, &wex.ProgramDayExerciseID, &wex.Position); err != nil {
		return nil, err
	}
	return &wex, nil
}

func scanWorkoutSet(row pgx.Row) (*gymplan.WorkoutSet, error) {
	var ws gymplan.WorkoutSet
	if err := row.Scan(
		&ws.ID,
		&ws.WorkoutExerciseID,
		&ws.PlannedSetID,
		&ws.SetNumber,
		&ws.Reps,
		&ws.Weight,
		&ws.RPE,
		&ws.RestSeconds,
	); err != nil {
		return nil, err
	}
	return &ws, nil
}
