package report

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

type MuscleGroupSets struct {
	MuscleGroup string `json:"muscleGroup"`
	Sets        int    `json:"sets"`
}

// WeekTrend holds the averages of all sets logged for one exercise in one program week.
// AvgWeight is nil when no logged set of the week carried a weight.
type WeekTrend struct {
	WeekNumber int      `json:"weekNumber"`
	AvgWeight  *float64 `json:"avgWeight,omitempty"`
	AvgReps    float64  `json:"avgReps"`
	Sets       int      `json:"sets"`
}

type DayStatus struct {
	ProgramDayID  int              `json:"programDayId"`
	PlannedSets   int              `json:"plannedSets"`
	CompletedSets int              `json:"completedSets"`
	Completed     bool             `json:"completed"`
	CompletionPct float64          `json:"completionPct"`
	LatestWorkout *gymplan.Workout `json:"latestWorkout,omitempty"`
}

// Projector answers aggregate questions over plans and logged workouts. Read only.
type Projector struct {
	db db.Querier
}

func NewProjector(db db.Querier) *Projector {
	return &Projector{
		db: db,
	}
}

func (p *Projector) TotalPlannedSets(ctx context.Context, programID, weekNumber int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projector.gymplan.totalPlannedSets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("program", programID), attribute.Int("week", weekNumber))

	var total int
	if err := p.db.QueryRow(
		ctx,
		`
			SELECT count(ps.id)
			FROM program_week pw
			JOIN program_day pd ON pd.program_week_id = pw.id
			JOIN program_day_exercise pde ON pde.program_day_id = pd.id
			JOIN planned_set ps ON ps.program_day_exercise_id = pde.id
			WHERE pw.program_id = $1 AND pw.week_number = $2
		`,
		programID, weekNumber,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("total planned sets: %w", err)
	}
	return total, nil
}

func (p *Projector) TotalActualSets(ctx context.Context, programID, weekNumber int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projector.gymplan.totalActualSets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("program", programID), attribute.Int("week", weekNumber))

	var total int
	if err := p.db.QueryRow(
		ctx,
		`
			SELECT count(ws.id)
			FROM program_week pw
			JOIN program_day pd ON pd.program_week_id = pw.id
			JOIN workout w ON w.program_day_id = pd.id
			JOIN workout_exercise we ON we.workout_id = w.id
			JOIN workout_set ws ON ws.workout_exercise_id = we.id
			WHERE pw.program_id = $1 AND pw.week_number = $2
		`,
		programID, weekNumber,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("total actual sets: %w", err)
	}
	return total, nil
}

// SetsByMuscleGroup counts logged sets of the week per muscle group, biggest first.
func (p *Projector) SetsByMuscleGroup(ctx context.Context, programID, weekNumber int) (_ []MuscleGroupSets, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projector.gymplan.setsByMuscleGroup")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("program", programID), attribute.Int("week", weekNumber))

	rows, err := p.db.Query(
		ctx,
		`
			SELECT e.muscle_group, count(ws.id)
			FROM program_week pw
			JOIN program_day pd ON pd.program_week_id = pw.id
			JOIN workout w ON w.program_day_id = pd.id
			JOIN workout_exercise we ON we.workout_id = w.id
			JOIN program_day_exercise pde ON pde.id = we.program_day_exercise_id
			JOIN exercise e ON e.id = pde.exercise_id
			JOIN workout_set ws ON ws.workout_exercise_id = we.id
			WHERE pw.program_id = $1 AND pw.week_number = $2
			GROUP BY e.muscle_group
			ORDER BY count(ws.id) DESC, e.muscle_group
		`,
		programID, weekNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("sets by muscle group [query]: %w", err)
	}
	defer rows.Close()

	groups := make([]MuscleGroupSets, 0)
	for rows.Next() {
		var g MuscleGroupSets
		if err := rows.Scan(&g.MuscleGroup, &g.Sets); err != nil {
			return nil, fmt.Errorf("sets by muscle group [rows scan]: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sets by muscle group [rows error]: %w", err)
	}
	return groups, nil
}

func (p *Projector) ExerciseTrend(ctx context.Context, programID, exerciseID int) (_ []WeekTrend, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projector.gymplan.exerciseTrend")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("program", programID), attribute.Int("exercise", exerciseID))

	rows, err := p.db.Query(
		ctx,
		`
			SELECT pw.week_number, avg(ws.weight), avg(ws.reps)::double precision, count(ws.id)
			FROM program_week pw
			JOIN program_day pd ON pd.program_week_id = pw.id
			JOIN program_day_exercise pde ON pde.program_day_id = pd.id
			JOIN workout_exercise we ON we.program_day_exercise_id = pde.id
			JOIN workout_set ws ON ws.workout_exercise_id = we.id
			WHERE pw.program_id = $1 AND pde.exercise_id = $2
			GROUP BY pw.week_number
			ORDER BY pw.week_number
		`,
		programID, exerciseID,
	)
	if err != nil {
		return nil, fmt.Errorf("exercise trend [query]: %w", err)
	}
	defer rows.Close()

	trend := make([]WeekTrend, 0)
	for rows.Next() {
		var wt WeekTrend
		if err := rows.Scan(&wt.WeekNumber, &wt.AvgWeight, &wt.AvgReps, &wt.Sets); err != nil {
			return nil, fmt.Errorf("exercise trend [rows scan]: %w", err)
		}
		trend = append(trend, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exercise trend [rows error]: %w", err)
	}
	return trend, nil
}

// DayStatus reports how much of a program day the user completed in their latest
// workout of that day.
func (p *Projector) DayStatus(
	ctx context.Context,
	programID, weekNumber, dayOfWeek, userID int,
) (_ *DayStatus, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projector.gymplan.dayStatus")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	status := &DayStatus{}
	err = p.db.QueryRow(
		ctx,
		`
			SELECT pd.id, (
			    SELECT count(*)
			    FROM program_day_exercise pde
			    JOIN planned_set ps ON ps.program_day_exercise_id = pde.id
			    WHERE pde.program_day_id = pd.id
			)
			FROM program_day pd
			JOIN program_week pw ON pw.id = pd.program_week_id
			WHERE pw.program_id = $1 AND pw.week_number = $2 AND pd.day_of_week = $3
		`,
		programID, weekNumber, dayOfWeek,
	).Scan(&status.ProgramDayID, &status.PlannedSets)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("program_day", "program", programID, "week", weekNumber, "day", dayOfWeek)
	}
	if err != nil {
		return nil, fmt.Errorf("day status [query row]: %w", err)
	}

	var latest gymplan.Workout
	err = p.db.QueryRow(
		ctx,
		`
			SELECT id, owner_user_id, program_day_id, started_at, finished_at, notes
			FROM workout
			WHERE program_day_id = $1 AND owner_user_id = $2
			ORDER BY started_at DESC, id DESC
			LIMIT 1
		`,
		status.ProgramDayID, userID,
	).Scan(&latest.ID, &latest.OwnerUserID, &latest.ProgramDayID, &latest.StartedAt, &latest.FinishedAt, &latest.Notes)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return status, nil
	case err != nil:
		return nil, fmt.Errorf("latest workout [query row]: %w", err)
	}
	status.LatestWorkout = &latest

	if err := p.db.QueryRow(
		ctx,
		`
			SELECT count(ws.id)
			FROM workout_exercise we
			JOIN workout_set ws ON ws.workout_exercise_id = we.id
			WHERE we.workout_id = $1
		`,
		latest.ID,
	).Scan(&status.CompletedSets); err != nil {
		return nil, fmt.Errorf("completed sets [query row]: %w", err)
	}

	status.CompletionPct = completion(status.PlannedSets, status.CompletedSets)
	status.Completed = status.PlannedSets > 0 && status.CompletedSets >= status.PlannedSets
	return status, nil
}

// completion is the completed share of planned sets in percent, rounded to one decimal.
func completion(planned, completed int) float64 {
	if planned <= 0 {
		return 0
	}
	pct := float64(min(completed, planned)) / float64(planned) * 100
	return math.Round(pct*10) / 10
}
