package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
)

func (s *Store) CreateOpenWorkout(
	_ context.Context,
	_ db.Querier,
	ownerUserID, dayID int,
	startedAt time.Time,
) (*gymplan.Workout, bool, error) {
	if _, ok := s.st.days[dayID]; !ok {
		return nil, false, gymplan.NotFound("program_day", dayID)
	}
	for _, w := range s.st.workouts {
		if w.OwnerUserID == ownerUserID && w.ProgramDayID == dayID && w.IsOpen() {
			return &w, false, nil
		}
	}
	w := gymplan.Workout{
		ID:           s.st.id(),
		OwnerUserID:  ownerUserID,
		ProgramDayID: dayID,
		StartedAt:    startedAt,
	}
	s.st.workouts[w.ID] = w
	return &w, true, nil
}

func (s *Store) GetWorkout(_ context.Context, _ db.Querier, id int) (*gymplan.Workout, error) {
	w, ok := s.st.workouts[id]
	if !ok {
		return nil, gymplan.NotFound("workout", id)
	}
	return &w, nil
}

func (s *Store) FinishWorkout(_ context.Context, _ db.Querier, id int, finishedAt time.Time, notes *string) (*gymplan.Workout, error) {
	if err := s.injected("FinishWorkout"); err != nil {
		return nil, err
	}
	w, ok := s.st.workouts[id]
	if !ok {
		return nil, gymplan.NotFound("workout", id)
	}
	if w.FinishedAt == nil {
		w.FinishedAt = &finishedAt
	}
	if notes != nil {
		w.Notes = notes
	}
	s.st.workouts[id] = w
	return &w, nil
}

func (s *Store) EnsureWorkoutExercise(_ context.Context, _ db.Querier, workoutID, pdeID, position int) (*gymplan.WorkoutExercise, error) {
	for _, wex := range s.st.wexes {
		if wex.WorkoutID == workoutID && wex.ProgramDayExerciseID == pdeID {
			return &wex, nil
		}
	}
	if _, ok := s.st.workouts[workoutID]; !ok {
		return nil, gymplan.NotFound("workout", workoutID)
	}
	if _, ok := s.st.pdes[pdeID]; !ok {
		return nil, gymplan.NotFound("program_day_exercise", pdeID)
	}
	wex := gymplan.WorkoutExercise{
		ID:                   s.st.id(),
		WorkoutID:            workoutID,
		ProgramDayExerciseID: pdeID,
		Position:             position,
	}
	s.st.wexes[wex.ID] = wex
	return &wex, nil
}

// LockWorkoutExercise only looks the row up, the unit of work already holds the store lock.
func (s *Store) LockWorkoutExercise(_ context.Context, _ db.Querier, id int) (*gymplan.WorkoutExercise, error) {
	wex, ok := s.st.wexes[id]
	if !ok {
		return nil, gymplan.NotFound("workout_exercise", id)
	}
	return &wex, nil
}

func (s *Store) ListWorkoutExercises(_ context.Context, _ db.Querier, workoutID int) ([]gymplan.WorkoutExercise, error) {
	wexes := make([]gymplan.WorkoutExercise, 0)
	for _, wex := range s.st.wexes {
		if wex.WorkoutID == workoutID {
			wexes = append(wexes, wex)
		}
	}
	slices.SortFunc(wexes, func(a, b gymplan.WorkoutExercise) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	return wexes, nil
}

func (s *Store) GetWorkoutSet(_ context.Context, _ db.Querier, wexID, plannedSetID int) (*gymplan.WorkoutSet, error) {
	for _, ws := range s.st.workoutSets {
		if ws.WorkoutExerciseID == wexID && ws.PlannedSetID == plannedSetID {
			return &ws, nil
		}
	}
	return nil, gymplan.NotFound("workout_set", "wex", wexID, "planned_set", plannedSetID)
}

func (s *Store) CountWorkoutSets(_ context.Context, _ db.Querier, wexID int) (int, error) {
	count := 0
	for _, ws := range s.st.workoutSets {
		if ws.WorkoutExerciseID == wexID {
			count++
		}
	}
	return count, nil
}

func (s *Store) InsertWorkoutSet(ctx context.Context, q db.Querier, ws gymplan.WorkoutSet) (*gymplan.WorkoutSet, error) {
	if err := s.injected("InsertWorkoutSet"); err != nil {
		return nil, err
	}
	if _, err := s.GetWorkoutSet(ctx, q, ws.WorkoutExerciseID, ws.PlannedSetID); err == nil {
		return nil, gymplan.Conflict("workout_set", "wex", ws.WorkoutExerciseID, "planned_set", ws.PlannedSetID)
	}
	if ws.Reps < 0 {
		return nil, gymplan.Invalid("reps", "must not be negative")
	}
	ws.ID = s.st.id()
	s.st.workoutSets[ws.ID] = ws
	return &ws, nil
}

func (s *Store) UpdateWorkoutSet(_ context.Context, _ db.Querier, ws gymplan.WorkoutSet) (*gymplan.WorkoutSet, error) {
	existing, ok := s.st.workoutSets[ws.ID]
	if !ok {
		return nil, gymplan.NotFound("workout_set", ws.ID)
	}
	existing.SetNumber = ws.SetNumber
	existing.Reps = ws.Reps
	existing.Weight = ws.Weight
	existing.RPE = ws.RPE
	existing.RestSeconds = ws.RestSeconds
	s.st.workoutSets[ws.ID] = existing
	return &existing, nil
}

func (s *Store) ListWorkoutSets(_ context.Context, _ db.Querier, wexID int) ([]gymplan.WorkoutSet, error) {
	sets := make([]gymplan.WorkoutSet, 0)
	for _, ws := range s.st.workoutSets {
		if ws.WorkoutExerciseID == wexID {
			sets = append(sets, ws)
		}
	}
	slices.SortFunc(sets, func(a, b gymplan.WorkoutSet) int {
		return cmp.Or(cmp.Compare(a.SetNumber, b.SetNumber), cmp.Compare(a.ID, b.ID))
	})
	return sets, nil
}

func (s *Store) ListDayActuals(_ context.Context, _ db.Querier, workoutID, dayID int) ([]gymplan.PlannedActual, error) {
	actuals := make([]gymplan.PlannedActual, 0)
	for _, pde := range s.st.pdes {
		if pde.ProgramDayID != dayID {
			continue
		}
		wexID := 0
		for _, wex := range s.st.wexes {
			if wex.WorkoutID == workoutID && wex.ProgramDayExerciseID == pde.ID {
				wexID = wex.ID
				break
			}
		}
		for _, ps := range s.st.plannedSets {
			if ps.ProgramDayExerciseID != pde.ID {
				continue
			}
			pa := gymplan.PlannedActual{
				PlannedSetID: ps.ID,
				Position:     pde.Position,
				SetNumber:    ps.SetNumber,
			}
			for _, ws := range s.st.workoutSets {
				if wexID != 0 && ws.WorkoutExerciseID == wexID && ws.PlannedSetID == ps.ID {
					reps := ws.Reps
					pa.Reps = &reps
					pa.Weight = ws.Weight
					break
				}
			}
			actuals = append(actuals, pa)
		}
	}
	slices.SortFunc(actuals, func(a, b gymplan.PlannedActual) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.SetNumber, b.SetNumber))
	})
	return actuals, nil
}
