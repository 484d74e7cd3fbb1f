package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/tracing"
	"github.com/2beens/gymplan/pkg"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

const exerciseColumns = `id, name, muscle_group, equipment, is_global, owner_user_id, created_at`

type Repo struct {
	db db.Querier
}

func NewRepo(db db.Querier) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, exercise gymplan.Exercise) (_ *gymplan.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.catalog.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("name", exercise.Name))
	span.SetAttributes(attribute.Bool("is_global", exercise.IsGlobal))

	row := r.db.QueryRow(
		ctx,
		`
			INSERT INTO exercise
			    (name, muscle_group, equipment, is_global, owner_user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+exerciseColumns,
		exercise.Name,
		exercise.MuscleGroup,
		exercise.Equipment,
		exercise.IsGlobal,
		exercise.OwnerUserID,
	)
	added, err := scanExercise(row)
	if err != nil {
		switch {
		case pkg.IsUniqueViolationError(err):
			return nil, gymplan.Conflict("exercise", "name", exercise.Name)
		case pkg.IsCheckViolationError(err):
			return nil, gymplan.Invalid("ownership", "exercise must be either global or owned by a user")
		}
		return nil, fmt.Errorf("insert exercise: %w", err)
	}

	span.SetAttributes(attribute.Int("exercise.id", added.ID))
	return added, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *gymplan.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.catalog.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	exercise, err := scanExercise(r.db.QueryRow(
		ctx,
		`SELECT `+exerciseColumns+` FROM exercise WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("exercise", id)
	}
	if err != nil {
		return nil, fmt.Errorf("exercise [query row]: %w", err)
	}
	return exercise, nil
}

// ListForUser returns global exercises plus, when userID is given, the user's own ones.
// Names are not deduplicated across scopes.
func (r *Repo) ListForUser(ctx context.Context, userID *int) (_ []gymplan.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.catalog.list_for_user")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	if userID != nil {
		span.SetAttributes(attribute.Int("user_id", *userID))
	}

	rows, err := r.db.Query(
		ctx,
		`
			SELECT `+exerciseColumns+`
			FROM exercise
			WHERE is_global OR ($1::integer IS NOT NULL AND owner_user_id = $1)
			ORDER BY is_global DESC, name, id
		`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("exercises [query]: %w", err)
	}
	defer rows.Close()

	exercises := make([]gymplan.Exercise, 0)
	for rows.Next() {
		exercise, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("exercises [rows scan]: %w", err)
		}
		exercises = append(exercises, *exercise)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exercises [rows error]: %w", err)
	}

	return exercises, nil
}

// FindByName looks the name up among the exercises visible to the user,
// preferring the user's own exercise over a global one with the same name.
func (r *Repo) FindByName(ctx context.Context, userID int, name string) (_ *gymplan.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gymplan.catalog.find_by_name")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exercise, err := scanExercise(r.db.QueryRow(
		ctx,
		`
			SELECT `+exerciseColumns+`
			FROM exercise
			WHERE lower(name) = lower($2) AND (is_global OR owner_user_id = $1)
			ORDER BY is_global ASC, id
			LIMIT 1
		`,
		userID,
		strings.TrimSpace(name),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gymplan.NotFound("exercise", "user", userID, "name", name)
	}
	if err != nil {
		return nil, fmt.Errorf("exercise by name [query row]: %w", err)
	}
	return exercise, nil
}

func scanExercise(row pgx.Row) (*gymplan.Exercise, error) {
	var e gymplan.Exercise
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&e.MuscleGroup,
		&e.Equipment,
		&e.IsGlobal,
		&e.OwnerUserID,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
