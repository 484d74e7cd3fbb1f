package plan

import (
	"context"
	"errors"
	"strings"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type txRunner interface {
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type planRepo interface {
	CreateProgram(ctx context.Context, q db.Querier, ownerUserID int, title string, description *string) (*gymplan.Program, error)
	GetProgram(ctx context.Context, q db.Querier, id int) (*gymplan.Program, error)
	ListPrograms(ctx context.Context, q db.Querier, ownerUserID int) ([]gymplan.Program, error)
	GetWeek(ctx context.Context, q db.Querier, programID, weekNumber int) (*gymplan.ProgramWeek, error)
	InsertWeek(ctx context.Context, q db.Querier, programID, weekNumber int) error
	GetDay(ctx context.Context, q db.Querier, weekID, dayOfWeek int) (*gymplan.ProgramDay, error)
	InsertDay(ctx context.Context, q db.Querier, weekID, dayOfWeek int) error
	ListDays(ctx context.Context, q db.Querier, weekID int) ([]gymplan.ProgramDay, error)
	GetDayExerciseAt(ctx context.Context, q db.Querier, dayID, position int) (*gymplan.ProgramDayExercise, error)
	InsertDayExercise(ctx context.Context, q db.Querier, pde gymplan.ProgramDayExercise) (*gymplan.ProgramDayExercise, error)
	ListDayExercises(ctx context.Context, q db.Querier, dayID int) ([]gymplan.ProgramDayExercise, error)
	GetPlannedSetByNumber(ctx context.Context, q db.Querier, pdeID, setNumber int) (*gymplan.PlannedSet, error)
	InsertPlannedSet(ctx context.Context, q db.Querier, ps gymplan.PlannedSet) (*gymplan.PlannedSet, error)
	ListPlannedSets(ctx context.Context, q db.Querier, pdeID int) ([]gymplan.PlannedSet, error)
}

type AddDayExerciseParams struct {
	ProgramID  int
	WeekNumber int
	DayOfWeek  int
	ExerciseID int
	Position   int
	Notes      *string
}

type AddPlannedSetParams struct {
	ProgramID   int
	WeekNumber  int
	DayOfWeek   int
	Position    int
	SetNumber   int
	Reps        int
	Weight      *float64
	RPE         *float64
	RestSeconds *int
}

type WeekPlan struct {
	Week gymplan.ProgramWeek `json:"week"`
	Days []DayPlan           `json:"days"`
}

type DayPlan struct {
	Day       gymplan.ProgramDay `json:"day"`
	Exercises []ExercisePlan     `json:"exercises"`
}

type ExercisePlan struct {
	DayExercise gymplan.ProgramDayExercise `json:"dayExercise"`
	Sets        []gymplan.PlannedSet       `json:"sets"`
}

// Builder creates the program hierarchy top-down. All add/ensure operations are
// idempotent: repeating a call with the same keys and payload returns the stored
// record, the same keys with a different payload is a conflict.
type Builder struct {
	tx   txRunner
	repo planRepo
}

func NewBuilder(tx txRunner, repo planRepo) *Builder {
	return &Builder{
		tx:   tx,
		repo: repo,
	}
}

func (b *Builder) CreateProgram(
	ctx context.Context,
	ownerUserID int,
	title string,
	description *string,
) (program *gymplan.Program, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "builder.gymplan.createProgram")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, gymplan.Invalid("title", "must not be empty")
	}

	err = b.tx.InTx(ctx, func(q db.Querier) error {
		program, err = b.repo.CreateProgram(ctx, q, ownerUserID, title, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("plan: program %d [%s] created for user %d", program.ID, program.Title, ownerUserID)
	return program, nil
}

func (b *Builder) GetProgram(ctx context.Context, programID int) (program *gymplan.Program, err error) {
	err = b.tx.InTx(ctx, func(q db.Querier) error {
		program, err = b.repo.GetProgram(ctx, q, programID)
		return err
	})
	return program, err
}

func (b *Builder) ListPrograms(ctx context.Context, ownerUserID int) (programs []gymplan.Program, err error) {
	err = b.tx.InTx(ctx, func(q db.Querier) error {
		programs, err = b.repo.ListPrograms(ctx, q, ownerUserID)
		return err
	})
	return programs, err
}

func (b *Builder) EnsureWeek(ctx context.Context, programID, weekNumber int) (week *gymplan.ProgramWeek, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "builder.gymplan.ensureWeek")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = b.tx.InTx(ctx, func(q db.Querier) error {
		week, err = b.ensureWeek(ctx, q, programID, weekNumber)
		return err
	})
	return week, err
}

func (b *Builder) EnsureDay(ctx context.Context, programID, weekNumber, dayOfWeek int) (day *gymplan.ProgramDay, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "builder.gymplan.ensureDay")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = b.tx.InTx(ctx, func(q db.Querier) error {
		day, err = b.EnsureDayWith(ctx, q, programID, weekNumber, dayOfWeek)
		return err
	})
	return day, err
}

// EnsureDayWith ensures the week and then the day on an already open unit of work.
func (b *Builder) EnsureDayWith(
	ctx context.Context,
	q db.Querier,
	programID, weekNumber, dayOfWeek int,
) (*gymplan.ProgramDay, error) {
	if dayOfWeek < 1 || dayOfWeek > 7 {
		return nil, gymplan.Invalid("dayOfWeek", "must be between 1 and 7")
	}

	week, err := b.ensureWeek(ctx, q, programID, weekNumber)
	if err != nil {
		return nil, err
	}

	day, err := b.repo.GetDay(ctx, q, week.ID, dayOfWeek)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, gymplan.ErrNotFound) {
		return nil, err
	}

	if err := b.repo.InsertDay(ctx, q, week.ID, dayOfWeek); err != nil {
		return nil, err
	}
	return b.repo.GetDay(ctx, q, week.ID, dayOfWeek)
}

func (b *Builder) ensureWeek(ctx context.Context, q db.Querier, programID, weekNumber int) (*gymplan.ProgramWeek, error) {
	if weekNumber <= 0 {
		return nil, gymplan.Invalid("weekNumber", "must be positive")
	}
	if _, err := b.repo.GetProgram(ctx, q, programID); err != nil {
		return nil, err
	}

	week, err := b.repo.GetWeek(ctx, q, programID, weekNumber)
	if err == nil {
		return week, nil
	}
	if !errors.Is(err, gymplan.ErrNotFound) {
		return nil, err
	}

	if err := b.repo.InsertWeek(ctx, q, programID, weekNumber); err != nil {
		return nil, err
	}
	return b.repo.GetWeek(ctx, q, programID, weekNumber)
}

// AddDayExercise places an exercise at a position of the day, ensuring the day first.
func (b *Builder) AddDayExercise(ctx context.Context, params AddDayExerciseParams) (pde *gymplan.ProgramDayExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "builder.gymplan.addDayExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("program", params.ProgramID),
		attribute.Int("week", params.WeekNumber),
		attribute.Int("day", params.DayOfWeek),
		attribute.Int("position", params.Position),
	)

	if params.Position <= 0 {
		return nil, gymplan.Invalid("position", "must be positive")
	}

	err = b.tx.InTx(ctx, func(q db.Querier) error {
		pde, err = b.addDayExercise(ctx, q, params)
		return err
	})
	return pde, err
}

func (b *Builder) addDayExercise(ctx context.Context, q db.Querier, params AddDayExerciseParams) (*gymplan.ProgramDayExercise, error) {
	day, err := b.EnsureDayWith(ctx, q, params.ProgramID, params.WeekNumber, params.DayOfWeek)
	if err != nil {
		return nil, err
	}

	existing, err := b.repo.GetDayExerciseAt(ctx, q, day.ID, params.Position)
	switch {
	case err == nil:
		if existing.ExerciseID != params.ExerciseID {
			return nil, gymplan.Conflict(
				"program_day_exercise",
				"day", day.ID,
				"position", params.Position,
				"exercise", existing.ExerciseID,
			)
		}
		return existing, nil
	case !errors.Is(err, gymplan.ErrNotFound):
		return nil, err
	}

	return b.repo.InsertDayExercise(ctx, q, gymplan.ProgramDayExercise{
		ProgramDayID: day.ID,
		ExerciseID:   params.ExerciseID,
		Position:     params.Position,
		Notes:        params.Notes,
	})
}

// AddPlannedSet adds a set to the exercise at the given position. The exercise slot
// must already exist, it is never created here.
func (b *Builder) AddPlannedSet(ctx context.Context, params AddPlannedSetParams) (ps *gymplan.PlannedSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "builder.gymplan.addPlannedSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("program", params.ProgramID),
		attribute.Int("week", params.WeekNumber),
		attribute.Int("day", params.DayOfWeek),
		attribute.Int("position", params.Position),
		attribute.Int("set", params.SetNumber),
	)

	switch {
	case params.Position <= 0:
		return nil, gymplan.Invalid("position", "must be positive")
	case params.SetNumber <= 0:
		return nil, gymplan.Invalid("setNumber", "must be positive")
	case params.Reps <= 0:
		return nil, gymplan.Invalid("reps", "must be positive")
	}

	err = b.tx.InTx(ctx, func(q db.Querier) error {
		ps, err = b.addPlannedSet(ctx, q, params)
		return err
	})
	return ps, err
}

func (b *Builder) addPlannedSet(ctx context.Context, q db.Querier, params AddPlannedSetParams) (*gymplan.PlannedSet, error) {
	day, err := b.EnsureDayWith(ctx, q, params.ProgramID, params.WeekNumber, params.DayOfWeek)
	if err != nil {
		return nil, err
	}

	pde, err := b.repo.GetDayExerciseAt(ctx, q, day.ID, params.Position)
	if err != nil {
		return nil, err
	}

	proposed := gymplan.PlannedSet{
		ProgramDayExerciseID: pde.ID,
		SetNumber:            params.SetNumber,
		Reps:                 params.Reps,
		Weight:               params.Weight,
		RPE:                  params.RPE,
		RestSeconds:          params.RestSeconds,
	}

	existing, err := b.repo.GetPlannedSetByNumber(ctx, q, pde.ID, params.SetNumber)
	switch {
	case err == nil:
		if !existing.SameTargets(proposed) {
			return nil, gymplan.Conflict("planned_set", "pde", pde.ID, "set", params.SetNumber)
		}
		return existing, nil
	case !errors.Is(err, gymplan.ErrNotFound):
		return nil, err
	}

	return b.repo.InsertPlannedSet(ctx, q, proposed)
}

// WeekPlan returns the day -> exercise -> planned set tree of one program week.
func (b *Builder) WeekPlan(ctx context.Context, programID, weekNumber int) (plan *WeekPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "builder.gymplan.weekPlan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = b.tx.InTx(ctx, func(q db.Querier) error {
		week, err := b.repo.GetWeek(ctx, q, programID, weekNumber)
		if err != nil {
			return err
		}
		days, err := b.repo.ListDays(ctx, q, week.ID)
		if err != nil {
			return err
		}

		plan = &WeekPlan{
			Week: *week,
			Days: make([]DayPlan, 0, len(days)),
		}
		for _, day := range days {
			dayPlan := DayPlan{
				Day:       day,
				Exercises: make([]ExercisePlan, 0),
			}
			pdes, err := b.repo.ListDayExercises(ctx, q, day.ID)
			if err != nil {
				return err
			}
			for _, pde := range pdes {
				sets, err := b.repo.ListPlannedSets(ctx, q, pde.ID)
				if err != nil {
					return err
				}
				dayPlan.Exercises = append(dayPlan.Exercises, ExercisePlan{
					DayExercise: pde,
					Sets:        sets,
				})
			}
			plan.Days = append(plan.Days, dayPlan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
