package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/gymplan/catalog"
	"github.com/2beens/gymplan/internal/telemetry/metrics"
	"github.com/2beens/gymplan/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// PlanDocument is a whole program as produced by a plan generator or written by hand.
type PlanDocument struct {
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Weeks       []WeekDocument `json:"weeks"`
	// RepeatUntilWeek copies the slots and targets of the last listed week into every
	// following week up to this number. Targets are copied unchanged.
	RepeatUntilWeek int `json:"repeat_until_week,omitempty"`
}

type WeekDocument struct {
	WeekNumber int           `json:"week_number"`
	Days       []DayDocument `json:"days"`
}

type DayDocument struct {
	DayOfWeek int                `json:"day_of_week"`
	Exercises []ExerciseDocument `json:"exercises"`
}

type ExerciseDocument struct {
	Name        string               `json:"name"`
	MuscleGroup string               `json:"muscle_group"`
	Equipment   *string              `json:"equipment,omitempty"`
	Position    int                  `json:"position"`
	Notes       *string              `json:"notes,omitempty"`
	PlannedSets []PlannedSetDocument `json:"planned_sets"`
}

type PlannedSetDocument struct {
	SetNumber   int      `json:"set_number"`
	Reps        int      `json:"reps"`
	Weight      *float64 `json:"weight,omitempty"`
	RPE         *float64 `json:"rpe,omitempty"`
	RestSeconds *int     `json:"rest_seconds,omitempty"`
}

func ParsePlanDocument(r io.Reader) (*PlanDocument, error) {
	var doc PlanDocument
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plan document: %w", err)
	}
	return &doc, nil
}

// normalize fills missing positions and set numbers from list order and validates the rest.
func (d *PlanDocument) normalize() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return gymplan.Invalid("title", "must not be empty")
	}
	if len(d.Weeks) == 0 {
		return gymplan.Invalid("weeks", "plan has no weeks")
	}

	lastWeek := 0
	for wi := range d.Weeks {
		week := &d.Weeks[wi]
		if week.WeekNumber == 0 {
			week.WeekNumber = wi + 1
		}
		if week.WeekNumber <= 0 {
			return gymplan.Invalid("week_number", "must be positive")
		}
		// repeat_until_week copies the last listed week forward
		if week.WeekNumber <= lastWeek {
			return gymplan.Invalid("week_number", fmt.Sprintf("week %d: weeks must be listed in increasing order", week.WeekNumber))
		}
		lastWeek = week.WeekNumber

		for di := range week.Days {
			day := &week.Days[di]
			if day.DayOfWeek < 1 || day.DayOfWeek > 7 {
				return gymplan.Invalid("day_of_week", fmt.Sprintf("week %d: must be between 1 and 7", week.WeekNumber))
			}
			for ei := range day.Exercises {
				ex := &day.Exercises[ei]
				ex.Name = strings.TrimSpace(ex.Name)
				if ex.Name == "" {
					return gymplan.Invalid("name", fmt.Sprintf("week %d, day %d: exercise without name", week.WeekNumber, day.DayOfWeek))
				}
				if strings.TrimSpace(ex.MuscleGroup) == "" {
					return gymplan.Invalid("muscle_group", fmt.Sprintf("exercise %s: must not be empty", ex.Name))
				}
				if ex.Position == 0 {
					ex.Position = ei + 1
				}
				if ex.Position < 0 {
					return gymplan.Invalid("position", fmt.Sprintf("exercise %s: must be positive", ex.Name))
				}
				for si := range ex.PlannedSets {
					set := &ex.PlannedSets[si]
					if set.SetNumber == 0 {
						set.SetNumber = si + 1
					}
					if set.SetNumber < 0 || set.Reps <= 0 {
						return gymplan.Invalid("planned_sets", fmt.Sprintf("exercise %s: set number and reps must be positive", ex.Name))
					}
				}
			}
		}
	}

	if d.RepeatUntilWeek != 0 && d.RepeatUntilWeek < lastWeek {
		return gymplan.Invalid("repeat_until_week", "must not be before the last listed week")
	}
	return nil
}

// expandedWeeks returns the listed weeks followed by the copies of the last one.
func (d *PlanDocument) expandedWeeks() []WeekDocument {
	weeks := append([]WeekDocument(nil), d.Weeks...)
	last := d.Weeks[len(d.Weeks)-1]
	for n := last.WeekNumber + 1; n <= d.RepeatUntilWeek; n++ {
		weeks = append(weeks, WeekDocument{
			WeekNumber: n,
			Days:       last.Days,
		})
	}
	return weeks
}

type exerciseResolver interface {
	FindByName(ctx context.Context, userID int, name string) (*gymplan.Exercise, error)
	CreateExercise(ctx context.Context, params catalog.CreateExerciseParams) (*gymplan.Exercise, error)
}

type ImportResult struct {
	Program          gymplan.Program `json:"program"`
	Weeks            int             `json:"weeks"`
	Days             int             `json:"days"`
	DayExercises     int             `json:"dayExercises"`
	PlannedSets      int             `json:"plannedSets"`
	ExercisesCreated int             `json:"exercisesCreated"`
}

// Importer turns a PlanDocument into a stored program by walking it top-down
// with the builder's ensure operations.
type Importer struct {
	builder   *Builder
	exercises exerciseResolver
	metrics   *metrics.Manager
}

func NewImporter(builder *Builder, exercises exerciseResolver, metricsManager *metrics.Manager) *Importer {
	return &Importer{
		builder:   builder,
		exercises: exercises,
		metrics:   metricsManager,
	}
}

func (i *Importer) Import(ctx context.Context, ownerUserID int, doc PlanDocument) (result *ImportResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "importer.gymplan.import")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner", ownerUserID))

	if err := doc.normalize(); err != nil {
		return nil, err
	}

	result = &ImportResult{}
	exerciseIDs, err := i.resolveExercises(ctx, ownerUserID, doc, result)
	if err != nil {
		return nil, err
	}

	weeks := doc.expandedWeeks()
	err = i.builder.tx.InTx(ctx, func(q db.Querier) error {
		program, err := i.builder.repo.CreateProgram(ctx, q, ownerUserID, doc.Title, doc.Description)
		if err != nil {
			return err
		}
		result.Program = *program

		for _, week := range weeks {
			if _, err := i.builder.ensureWeek(ctx, q, program.ID, week.WeekNumber); err != nil {
				return fmt.Errorf("week %d: %w", week.WeekNumber, err)
			}
			result.Weeks++

			for _, day := range week.Days {
				if _, err := i.builder.EnsureDayWith(ctx, q, program.ID, week.WeekNumber, day.DayOfWeek); err != nil {
					return fmt.Errorf("week %d, day %d: %w", week.WeekNumber, day.DayOfWeek, err)
				}
				result.Days++

				for _, ex := range day.Exercises {
					if _, err := i.builder.addDayExercise(ctx, q, AddDayExerciseParams{
						ProgramID:  program.ID,
						WeekNumber: week.WeekNumber,
						DayOfWeek:  day.DayOfWeek,
						ExerciseID: exerciseIDs[exerciseKey(ex.Name)],
						Position:   ex.Position,
						Notes:      ex.Notes,
					}); err != nil {
						return fmt.Errorf("week %d, day %d, exercise %s: %w", week.WeekNumber, day.DayOfWeek, ex.Name, err)
					}
					result.DayExercises++

					for _, set := range ex.PlannedSets {
						if _, err := i.builder.addPlannedSet(ctx, q, AddPlannedSetParams{
							ProgramID:   program.ID,
							WeekNumber:  week.WeekNumber,
							DayOfWeek:   day.DayOfWeek,
							Position:    ex.Position,
							SetNumber:   set.SetNumber,
							Reps:        set.Reps,
							Weight:      set.Weight,
							RPE:         set.RPE,
							RestSeconds: set.RestSeconds,
						}); err != nil {
							return fmt.Errorf("week %d, day %d, exercise %s, set %d: %w",
								week.WeekNumber, day.DayOfWeek, ex.Name, set.SetNumber, err)
						}
						result.PlannedSets++
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import plan [%s]: %w", doc.Title, err)
	}

	i.metrics.CounterPlansImported.Inc()
	log.Infof(
		"plan: imported program %d [%s] for user %d: weeks=%d days=%d slots=%d sets=%d new exercises=%d",
		result.Program.ID, result.Program.Title, ownerUserID,
		result.Weeks, result.Days, result.DayExercises, result.PlannedSets, result.ExercisesCreated,
	)
	return result, nil
}

// resolveExercises maps every exercise name of the document to a catalog id visible
// to the owner, creating user-owned exercises for unknown names.
func (i *Importer) resolveExercises(
	ctx context.Context,
	ownerUserID int,
	doc PlanDocument,
	result *ImportResult,
) (map[string]int, error) {
	ids := make(map[string]int)
	for _, week := range doc.Weeks {
		for _, day := range week.Days {
			for _, ex := range day.Exercises {
				key := exerciseKey(ex.Name)
				if _, ok := ids[key]; ok {
					continue
				}

				found, err := i.exercises.FindByName(ctx, ownerUserID, ex.Name)
				if err == nil {
					ids[key] = found.ID
					continue
				}
				if !errors.Is(err, gymplan.ErrNotFound) {
					return nil, fmt.Errorf("find exercise %s: %w", ex.Name, err)
				}

				owner := ownerUserID
				created, err := i.exercises.CreateExercise(ctx, catalog.CreateExerciseParams{
					OwnerUserID: &owner,
					Name:        ex.Name,
					MuscleGroup: ex.MuscleGroup,
					Equipment:   ex.Equipment,
				})
				if errors.Is(err, gymplan.ErrConflict) {
					// created concurrently
					created, err = i.exercises.FindByName(ctx, ownerUserID, ex.Name)
				} else if err == nil {
					result.ExercisesCreated++
				}
				if err != nil {
					return nil, fmt.Errorf("create exercise %s: %w", ex.Name, err)
				}
				ids[key] = created.ID
			}
		}
	}
	return ids, nil
}

func exerciseKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
