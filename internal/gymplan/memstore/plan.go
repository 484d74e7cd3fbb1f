package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
)

func (s *Store) CreateProgram(_ context.Context, _ db.Querier, ownerUserID int, title string, description *string) (*gymplan.Program, error) {
	if err := s.injected("CreateProgram"); err != nil {
		return nil, err
	}
	p := gymplan.Program{
		ID:          s.st.id(),
		OwnerUserID: ownerUserID,
		Title:       title,
		Description: description,
		CreatedAt:   s.now(),
	}
	s.st.programs[p.ID] = p
	return &p, nil
}

func (s *Store) GetProgram(_ context.Context, _ db.Querier, id int) (*gymplan.Program, error) {
	p, ok := s.st.programs[id]
	if !ok {
		return nil, gymplan.NotFound("program", id)
	}
	return &p, nil
}

func (s *Store) ListPrograms(_ context.Context, _ db.Querier, ownerUserID int) ([]gymplan.Program, error) {
	programs := make([]gymplan.Program, 0)
	for _, p := range s.st.programs {
		if p.OwnerUserID == ownerUserID {
			programs = append(programs, p)
		}
	}
	slices.SortFunc(programs, func(a, b gymplan.Program) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return programs, nil
}

func (s *Store) GetWeek(_ context.Context, _ db.Querier, programID, weekNumber int) (*gymplan.ProgramWeek, error) {
	for _, w := range s.st.weeks {
		if w.ProgramID == programID && w.WeekNumber == weekNumber {
			return &w, nil
		}
	}
	return nil, gymplan.NotFound("program_week", "program", programID, "week", weekNumber)
}

func (s *Store) InsertWeek(ctx context.Context, q db.Querier, programID, weekNumber int) error {
	if _, ok := s.st.programs[programID]; !ok {
		return gymplan.NotFound("program", programID)
	}
	if _, err := s.GetWeek(ctx, q, programID, weekNumber); err == nil {
		return nil
	}
	w := gymplan.ProgramWeek{ID: s.st.id(), ProgramID: programID, WeekNumber: weekNumber}
	s.st.weeks[w.ID] = w
	return nil
}

func (s *Store) GetDay(_ context.Context, _ db.Querier, weekID, dayOfWeek int) (*gymplan.ProgramDay, error) {
	for _, d := range s.st.days {
		if d.ProgramWeekID == weekID && d.DayOfWeek == dayOfWeek {
			return &d, nil
		}
	}
	return nil, gymplan.NotFound("program_day", "week", weekID, "day", dayOfWeek)
}

func (s *Store) InsertDay(ctx context.Context, q db.Querier, weekID, dayOfWeek int) error {
	if _, ok := s.st.weeks[weekID]; !ok {
		return gymplan.NotFound("program_week", weekID)
	}
	if _, err := s.GetDay(ctx, q, weekID, dayOfWeek); err == nil {
		return nil
	}
	d := gymplan.ProgramDay{ID: s.st.id(), ProgramWeekID: weekID, DayOfWeek: dayOfWeek}
	s.st.days[d.ID] = d
	return nil
}

func (s *Store) FindDay(ctx context.Context, q db.Querier, programID, weekNumber, dayOfWeek int) (*gymplan.ProgramDay, error) {
	w, err := s.GetWeek(ctx, q, programID, weekNumber)
	if err != nil {
		return nil, gymplan.NotFound("program_day", "program", programID, "week", weekNumber, "day", dayOfWeek)
	}
	d, err := s.GetDay(ctx, q, w.ID, dayOfWeek)
	if err != nil {
		return nil, gymplan.NotFound("program_day", "program", programID, "week", weekNumber, "day", dayOfWeek)
	}
	return d, nil
}

func (s *Store) ListDays(_ context.Context, _ db.Querier, weekID int) ([]gymplan.ProgramDay, error) {
	days := make([]gymplan.ProgramDay, 0)
	for _, d := range s.st.days {
		if d.ProgramWeekID == weekID {
			days = append(days, d)
		}
	}
	slices.SortFunc(days, func(a, b gymplan.ProgramDay) int {
		return cmp.Compare(a.DayOfWeek, b.DayOfWeek)
	})
	return days, nil
}

func (s *Store) GetDayLocation(_ context.Context, _ db.Querier, dayID int) (*gymplan.DayLocation, error) {
	d, ok := s.st.days[dayID]
	if !ok {
		return nil, gymplan.NotFound("program_day", dayID)
	}
	w := s.st.weeks[d.ProgramWeekID]
	return &gymplan.DayLocation{
		ProgramID:  w.ProgramID,
		WeekNumber: w.WeekNumber,
		DayOfWeek:  d.DayOfWeek,
	}, nil
}

func (s *Store) GetDayExerciseAt(_ context.Context, _ db.Querier, dayID, position int) (*gymplan.ProgramDayExercise, error) {
	for _, pde := range s.st.pdes {
		if pde.ProgramDayID == dayID && pde.Position == position {
			return &pde, nil
		}
	}
	return nil, gymplan.NotFound("program_day_exercise", "day", dayID, "position", position)
}

func (s *Store) InsertDayExercise(ctx context.Context, q db.Querier, pde gymplan.ProgramDayExercise) (*gymplan.ProgramDayExercise, error) {
	if _, ok := s.st.days[pde.ProgramDayID]; !ok {
		return nil, gymplan.NotFound("program_day", pde.ProgramDayID)
	}
	if _, ok := s.st.exercises[pde.ExerciseID]; !ok {
		return nil, gymplan.NotFound("exercise", pde.ExerciseID)
	}
	if _, err := s.GetDayExerciseAt(ctx, q, pde.ProgramDayID, pde.Position); err == nil {
		return nil, gymplan.Conflict("program_day_exercise", "day", pde.ProgramDayID, "position", pde.Position)
	}
	pde.ID = s.st.id()
	s.st.pdes[pde.ID] = pde
	return &pde, nil
}

func (s *Store) ListDayExercises(_ context.Context, _ db.Querier, dayID int) ([]gymplan.ProgramDayExercise, error) {
	pdes := make([]gymplan.ProgramDayExercise, 0)
	for _, pde := range s.st.pdes {
		if pde.ProgramDayID == dayID {
			pdes = append(pdes, pde)
		}
	}
	slices.SortFunc(pdes, func(a, b gymplan.ProgramDayExercise) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return pdes, nil
}

func (s *Store) GetPlannedSet(_ context.Context, _ db.Querier, id int) (*gymplan.PlannedSet, error) {
	ps, ok := s.st.plannedSets[id]
	if !ok {
		return nil, gymplan.NotFound("planned_set", id)
	}
	return &ps, nil
}

func (s *Store) GetPlannedSetByNumber(_ context.Context, _ db.Querier, pdeID, setNumber int) (*gymplan.PlannedSet, error) {
	for _, ps := range s.st.plannedSets {
		if ps.ProgramDayExerciseID == pdeID && ps.SetNumber == setNumber {
			return &ps, nil
		}
	}
	return nil, gymplan.NotFound("planned_set", "pde", pdeID, "set", setNumber)
}

func (s *Store) InsertPlannedSet(ctx context.Context, q db.Querier, ps gymplan.PlannedSet) (*gymplan.PlannedSet, error) {
	if _, ok := s.st.pdes[ps.ProgramDayExerciseID]; !ok {
		return nil, gymplan.NotFound("program_day_exercise", ps.ProgramDayExerciseID)
	}
	if ps.Reps <= 0 {
		return nil, gymplan.Invalid("reps", "must be positive")
	}
	if _, err := s.GetPlannedSetByNumber(ctx, q, ps.ProgramDayExerciseID, ps.SetNumber); err == nil {
		return nil, gymplan.Conflict("planned_set", "pde", ps.ProgramDayExerciseID, "set", ps.SetNumber)
	}
	ps.ID = s.st.id()
	s.st.plannedSets[ps.ID] = ps
	return &ps, nil
}

func (s *Store) ListPlannedSets(_ context.Context, _ db.Querier, pdeID int) ([]gymplan.PlannedSet, error) {
	sets := make([]gymplan.PlannedSet, 0)
	for _, ps := range s.st.plannedSets {
		if ps.ProgramDayExerciseID == pdeID {
			sets = append(sets, ps)
		}
	}
	slices.SortFunc(sets, func(a, b gymplan.PlannedSet) int {
		return cmp.Compare(a.SetNumber, b.SetNumber)
	})
	return sets, nil
}

func (s *Store) CountPlannedSets(_ context.Context, _ db.Querier, pdeID int) (int, error) {
	count := 0
	for _, ps := range s.st.plannedSets {
		if ps.ProgramDayExerciseID == pdeID {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpsertPlannedSetTargets(
	ctx context.Context,
	q db.Querier,
	pdeID, setNumber, reps int,
	weight *float64,
) (bool, error) {
	if err := s.injected("UpsertPlannedSetTargets"); err != nil {
		return false, err
	}
	existing, err := s.GetPlannedSetByNumber(ctx, q, pdeID, setNumber)
	if err == nil {
		existing.Reps = reps
		existing.Weight = weight
		s.st.plannedSets[existing.ID] = *existing
		return false, nil
	}
	if _, err := s.InsertPlannedSet(ctx, q, gymplan.PlannedSet{
		ProgramDayExerciseID: pdeID,
		SetNumber:            setNumber,
		Reps:                 reps,
		Weight:               weight,
	}); err != nil {
		return false, err
	}
	return true, nil
}
