package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/tracing"
	"github.com/2beens/gymplan/pkg"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	programColumns     = `id, owner_user_id, title, description, created_at`
	dayExerciseColumns = `id, program_day_id, exercise_id, position, notes`
	plannedSetColumns  = `id, program_day_exercise_id, set_number, reps, weight, rpe, rest_seconds`
)

// Repo is the postgres store of the program hierarchy. It holds no connection,
// every method runs on the querier it is given (pool or transaction).
type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

func (r *Repo) CreateProgram(
	ctx context.Context,
	q db.Querier,
	ownerUserID int,
	title string,
	description *string,
) (_ *gymplan.Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.createProgram")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner", ownerUserID))

	program, err := scanProgram(q.QueryRow(
		ctx,
		`
			INSERT INTO program (owner_user_id, title, description)
			VALUES ($1, $2, $3)
			RETURNING `+programColumns,
		ownerUserID, title, description,
	))
	if err != nil {
		return nil, fmt.Errorf("insert program: %w", err)
	}
	return program, nil
}

func (r *Repo) GetProgram(ctx context.Context, q db.Querier, id int) (_ *gymplan.Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.getProgram")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	program, err := scanProgram(q.QueryRow(
		ctx,
		`SELECT `+programColumns+` FROM program WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program", id)
	}
	if err != nil {
		return nil, fmt.Errorf("program [query row]: %w", err)
	}
	return program, nil
}

func (r *Repo) ListPrograms(ctx context.Context, q db.Querier, ownerUserID int) (_ []gymplan.Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.listPrograms")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := q.Query(
		ctx,
		`SELECT `+programColumns+` FROM program WHERE owner_user_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("programs [query]: %w", err)
	}
	defer rows.Close()

	programs := make([]gymplan.Program, 0)
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("programs [rows scan]: %w", err)
		}
		programs = append(programs, *program)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("programs [rows error]: %w", err)
	}
	return programs, nil
}

func (r *Repo) GetWeek(ctx context.Context, q db.Querier, programID, weekNumber int) (*gymplan.ProgramWeek, error) {
	var w gymplan.ProgramWeek
	err := q.QueryRow(
		ctx,
		`SELECT id, program_id, week_number FROM program_week WHERE program_id = $1 AND week_number = $2`,
		programID, weekNumber,
	).Scan(&w.ID, &w.ProgramID, &w.WeekNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program_week", "program", programID, "week", weekNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("program week [query row]: %w", err)
	}
	return &w, nil
}

// InsertWeek is a no-op when the week already exists.
func (r *Repo) InsertWeek(ctx context.Context, q db.Querier, programID, weekNumber int) error {
	_, err := q.Exec(
		ctx,
		`
			INSERT INTO program_week (program_id, week_number)
			VALUES ($1, $2)
			ON CONFLICT (program_id, week_number) DO NOTHING
		`,
		programID, weekNumber,
	)
	if err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return gymplan.NotFound("program", programID)
		}
		return fmt.Errorf("insert program week: %w", err)
	}
	return nil
}

func (r *Repo) GetDay(ctx context.Context, q db.Querier, weekID, dayOfWeek int) (*gymplan.ProgramDay, error) {
	var d gymplan.ProgramDay
	err := q.QueryRow(
		ctx,
		`SELECT id, program_week_id, day_of_week FROM program_day WHERE program_week_id = $1 AND day_of_week = $2`,
		weekID, dayOfWeek,
	).Scan(&d.ID, &d.ProgramWeekID, &d.DayOfWeek)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program_day", "week", weekID, "day", dayOfWeek)
	}
	if err != nil {
		return nil, fmt.Errorf("program day [query row]: %w", err)
	}
	return &d, nil
}

// InsertDay is a no-op when the day already exists.
func (r *Repo) InsertDay(ctx context.Context, q db.Querier, weekID, dayOfWeek int) error {
	if _, err := q.Exec(
		ctx,
		`
			INSERT INTO program_day (program_week_id, day_of_week)
			VALUES ($1, $2)
			ON CONFLICT (program_week_id, day_of_week) DO NOTHING
		`,
		weekID, dayOfWeek,
	); err != nil {
		return fmt.Errorf("insert program day: %w", err)
	}
	return nil
}

// FindDay resolves a day by its place in the program, without creating anything.
func (r *Repo) FindDay(
	ctx context.Context,
	q db.Querier,
	programID, weekNumber, dayOfWeek int,
) (_ *gymplan.ProgramDay, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.findDay")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("program", programID),
		attribute.Int("week", weekNumber),
		attribute.Int("day", dayOfWeek),
	)

	var d gymplan.ProgramDay
	err = q.QueryRow(
		ctx,
		`
			SELECT pd.id, pd.program_week_id, pd.day_of_week
			FROM program_day pd
			JOIN program_week pw ON pw.id = pd.program_week_id
			WHERE pw.program_id = $1 AND pw.week_number = $2 AND pd.day_of_week = $3
		`,
		programID, weekNumber, dayOfWeek,
	).Scan(&d.ID, &d.ProgramWeekID, &d.DayOfWeek)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program_day", "program", programID, "week", weekNumber, "day", dayOfWeek)
	}
	if err != nil {
		return nil, fmt.Errorf("find program day [query row]: %w", err)
	}
	return &d, nil
}

func (r *Repo) ListDays(ctx context.Context, q db.Querier, weekID int) ([]gymplan.ProgramDay, error) {
	rows, err := q.Query(
		ctx,
		`SELECT id, program_week_id, day_of_week FROM program_day WHERE program_week_id = $1 ORDER BY day_of_week`,
		weekID,
	)
	if err != nil {
		return nil, fmt.Errorf("program days [query]: %w", err)
	}
	defer rows.Close()

	days := make([]gymplan.ProgramDay, 0)
	for rows.Next() {
		var d gymplan.ProgramDay
		if err := rows.Scan(&d.ID, &d.ProgramWeekID, &d.DayOfWeek); err != nil {
			return nil, fmt.Errorf("program days [rows scan]: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("program days [rows error]: %w", err)
	}
	return days, nil
}

func (r *Repo) GetDayLocation(ctx context.Context, q db.Querier, dayID int) (*gymplan.DayLocation, error) {
	var loc gymplan.DayLocation
	err := q.QueryRow(
		ctx,
		`
			SELECT pw.program_id, pw.week_number, pd.day_of_week
			FROM program_day pd
			JOIN program_week pw ON pw.id = pd.program_week_id
			WHERE pd.id = $1
		`,
		dayID,
	).Scan(&loc.ProgramID, &loc.WeekNumber, &loc.DayOfWeek)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program_day", dayID)
	}
	if err != nil {
		return nil, fmt.Errorf("day location [query row]: %w", err)
	}
	return &loc, nil
}

func (r *Repo) GetDayExerciseAt(ctx context.Context, q db.Querier, dayID, position int) (*gymplan.ProgramDayExercise, error) {
	pde, err := scanDayExercise(q.QueryRow(
		ctx,
		`SELECT `+dayExerciseColumns+` FROM program_day_exercise WHERE program_day_id = $1 AND position = $2`,
		dayID, position,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program_day_exercise", "day", dayID, "position", position)
	}
	if err != nil {
		return nil, fmt.Errorf("day exercise [query row]: %w", err)
	}
	return pde, nil
}

func (r *Repo) InsertDayExercise(
	ctx context.Context,
	q db.Querier,
	pde gymplan.ProgramDayExercise,
) (_ *gymplan.ProgramDayExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.insertDayExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("day", pde.ProgramDayID), attribute.Int("position", pde.Position))

	added, err := scanDayExercise(q.QueryRow(
		ctx,
		`
			INSERT INTO program_day_exercise (program_day_id, exercise_id, position, notes)
			VALUES ($1, $2, $3, $4)
			RETURNING `+dayExerciseColumns,
		pde.ProgramDayID, pde.ExerciseID, pde.Position, pde.Notes,
	))
	if err != nil {
		switch {
		case pkg.IsForeignKeyViolationError(err):
			return nil, missingDayExerciseParent(err, pde)
		case pkg.IsUniqueViolationError(err):
			return nil, gymplan.Conflict("program_day_exercise", "day", pde.ProgramDayID, "position", pde.Position)
		}
		return nil, fmt.Errorf("insert day exercise: %w", err)
	}
	return added, nil
}

// missingDayExerciseParent maps a program_day_exercise foreign key violation
// to the parent that does not exist.
func missingDayExerciseParent(err error, pde gymplan.ProgramDayExercise) *gymplan.NotFoundError {
	if pkg.ConstraintName(err) == "program_day_exercise_program_day_id_fkey" {
		return gymplan.NotFound("program_day", pde.ProgramDayID)
	}
	return gymplan.NotFound("exercise", pde.ExerciseID)
}

func (r *Repo) ListDayExercises(ctx context.Context, q db.Querier, dayID int) ([]gymplan.ProgramDayExercise, error) {
	rows, err := q.Query(
		ctx,
		`SELECT `+dayExerciseColumns+` FROM program_day_exercise WHERE program_day_id = $1 ORDER BY position`,
		dayID,
	)
	if err != nil {
		return nil, fmt.Errorf("day exercises [query]: %w", err)
	}
	defer rows.Close()

	pdes := make([]gymplan.ProgramDayExercise, 0)
	for rows.Next() {
		pde, err := scanDayExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("day exercises [rows scan]: %w", err)
		}
		pdes = append(pdes, *pde)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("day exercises [rows error]: %w", err)
	}
	return pdes, nil
}

func (r *Repo) GetPlannedSet(ctx context.Context, q db.Querier, id int) (*gymplan.PlannedSet, error) {
	ps, err := scanPlannedSet(q.QueryRow(
		ctx,
		`SELECT `+plannedSetColumns+` FROM planned_set WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("planned_set", id)
	}
	if err != nil {
		return nil, fmt.Errorf("planned set [query row]: %w", err)
	}
	return ps, nil
}

func (r *Repo) GetPlannedSetByNumber(ctx context.Context, q db.Querier, pdeID, setNumber int) (*gymplan.PlannedSet, error) {
	ps, err := scanPlannedSet(q.QueryRow(
		ctx,
		`SELECT `+plannedSetColumns+` FROM planned_set WHERE program_day_exercise_id = $1 AND set_number = $2`,
		pdeID, setNumber,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("planned_set", "pde", pdeID, "set", setNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("planned set by number [query row]: %w", err)
	}
	return ps, nil
}

func (r *Repo) InsertPlannedSet(ctx context.Context, q db.Querier, ps gymplan.PlannedSet) (_ *gymplan.PlannedSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.insertPlannedSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("pde", ps.ProgramDayExerciseID), attribute.Int("set", ps.SetNumber))

	added, err := scanPlannedSet(q.QueryRow(
		ctx,
		`
			INSERT INTO planned_set
			    (program_day_exercise_id, set_number, reps, weight, rpe, rest_seconds)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+plannedSetColumns,
		ps.ProgramDayExerciseID, ps.SetNumber, ps.Reps, ps.Weight, ps.RPE, ps.RestSeconds,
	))
	if err != nil {
		switch {
		case pkg.IsUniqueViolationError(err):
			return nil, gymplan.Conflict("planned_set", "pde", ps.ProgramDayExerciseID, "set", ps.SetNumber)
		case pkg.IsForeignKeyViolationError(err):
			return nil, gymplan.NotFound("program_day_exercise", ps.ProgramDayExerciseID)
		}
		return nil, fmt.Errorf("insert planned set: %w", err)
	}
	return added, nil
}

func (r *Repo) ListPlannedSets(ctx context.Context, q db.Querier, pdeID int) ([]gymplan.PlannedSet, error) {
	rows, err := q.Query(
		ctx,
		`SELECT `+plannedSetColumns+` FROM planned_set WHERE program_day_exercise_id = $1 ORDER BY set_number`,
		pdeID,
	)
	if err != nil {
		return nil, fmt.Errorf("planned sets [query]: %w", err)
	}
	defer rows.Close()

	sets := make([]gymplan.PlannedSet, 0)
	for rows.Next() {
		ps, err := scanPlannedSet(rows)
		if err != nil {
			return nil, fmt.Errorf("planned sets [rows scan]: %w", err)
		}
		sets = append(sets, *ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("planned sets [rows error]: %w", err)
	}
	return sets, nil
}

func (r *Repo) CountPlannedSets(ctx context.Context, q db.Querier, pdeID int) (int, error) {
	var count int
	if err := q.QueryRow(
		ctx,
		`SELECT count(*) FROM planned_set WHERE program_day_exercise_id = $1`,
		pdeID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count planned sets: %w", err)
	}
	return count, nil
}

// UpsertPlannedSetTargets sets reps and weight of the planned set matched by set number,
// inserting it when missing. RPE and rest of an existing set are left untouched.
func (r *Repo) UpsertPlannedSetTargets(
	ctx context.Context,
	q db.Querier,
	pdeID, setNumber, reps int,
	weight *float64,
) (inserted bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.plan.upsertPlannedSetTargets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = q.QueryRow(
		ctx,
		`
			INSERT INTO planned_set (program_day_exercise_id, set_number, reps, weight)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (program_day_exercise_id, set_number)
			    DO UPDATE SET reps = EXCLUDED.reps, weight = EXCLUDED.weight
			RETURNING (xmax = 0)
		`,
		pdeID, setNumber, reps, weight,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert planned set: %w", err)
	}
	span.SetAttributes(attribute.Bool("inserted", inserted))
	return inserted, nil
}

func scanProgram(row pgx.Row) (*gymplan.Program, error) {
	var p gymplan.Program
	if err := row.Scan(&p.ID, &p.OwnerUserID, &p.Title, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDayExercise(row pgx.Row) (*gymplan.ProgramDayExercise, error) {
	var pde gymplan.ProgramDayExercise
	if err := row.Scan(&pde.ID, &pde.ProgramDayID, &pde.ExerciseID, &pde.Position, &pde.Notes); err != nil {
		return nil, err
	}
	return &pde, nil
}

func scanPlannedSet(row pgx.Row) (*gymplan.PlannedSet, error) {
	var ps gymplan.PlannedSet
	if err := row.Scan(
		&ps.ID,
		&ps.ProgramDayExerciseID,
		&ps.SetNumber,
		&ps.Reps,
		&ps.Weight,
		&ps.RPE,
		&ps.RestSeconds,
	); err != nil {
		return nil, err
	}
	return &ps, nil
}
