package gymplan

import "time"

// Exercise is a catalog entry. Exactly one of IsGlobal and OwnerUserID is set.
type Exercise struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscleGroup"`
	Equipment   *string   `json:"equipment,omitempty"`
	IsGlobal    bool      `json:"isGlobal"`
	OwnerUserID *int      `json:"ownerUserId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Program struct {
	ID          int       `json:"id"`
	OwnerUserID int       `json:"ownerUserId"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProgramWeek struct {
	ID         int `json:"id"`
	ProgramID  int `json:"programId"`
	WeekNumber int `json:"weekNumber"`
}

type ProgramDay struct {
	ID            int `json:"id"`
	ProgramWeekID int `json:"programWeekId"`
	DayOfWeek     int `json:"dayOfWeek"`
}

// ProgramDayExercise is one exercise slot at a fixed position within a program day.
type ProgramDayExercise struct {
	ID           int     `json:"id"`
	ProgramDayID int     `json:"programDayId"`
	ExerciseID   int     `json:"exerciseId"`
	Position     int     `json:"position"`
	Notes        *string `json:"notes,omitempty"`
}

// PlannedSet is the target for one set number of a ProgramDayExercise.
type PlannedSet struct {
	ID                   int      `json:"id"`
	ProgramDayExerciseID int      `json:"programDayExerciseId"`
	SetNumber            int      `json:"setNumber"`
	Reps                 int      `json:"reps"`
	Weight               *float64 `json:"weight,omitempty"`
	RPE                  *float64 `json:"rpe,omitempty"`
	RestSeconds          *int     `json:"restSeconds,omitempty"`
}

// SameTargets reports whether both planned sets ask for the same work.
func (ps PlannedSet) SameTargets(other PlannedSet) bool {
	return ps.Reps == other.Reps &&
		equalPtr(ps.Weight, other.Weight) &&
		equalPtr(ps.RPE, other.RPE) &&
		equalPtr(ps.RestSeconds, other.RestSeconds)
}

type Workout struct {
	ID           int        `json:"id"`
	OwnerUserID  int        `json:"ownerUserId"`
	ProgramDayID int        `json:"programDayId"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

func (w Workout) IsOpen() bool {
	return w.FinishedAt == nil
}

// WorkoutExercise binds a workout to one ProgramDayExercise.
type WorkoutExercise struct {
	ID                   int `json:"id"`
	WorkoutID            int `json:"workoutId"`
	ProgramDayExerciseID int `json:"programDayExerciseId"`
	Position             int `json:"position"`
}

// WorkoutSet is the recorded outcome of one planned set during a workout.
type WorkoutSet struct {
	ID                int      `json:"id"`
	WorkoutExerciseID int      `json:"workoutExerciseId"`
	PlannedSetID      int      `json:"plannedSetId"`
	SetNumber         int      `json:"setNumber"`
	Reps              int      `json:"reps"`
	Weight            *float64 `json:"weight,omitempty"`
	RPE               *float64 `json:"rpe,omitempty"`
	RestSeconds       *int     `json:"restSeconds,omitempty"`
}

// DayLocation places a program day within its program.
type DayLocation struct {
	ProgramID  int `json:"programId"`
	WeekNumber int `json:"weekNumber"`
	DayOfWeek  int `json:"dayOfWeek"`
}

// PlannedActual pairs a planned set of a day with the set logged against it
// in one workout. Reps is nil when nothing was logged.
type PlannedActual struct {
	PlannedSetID int      `json:"plannedSetId"`
	Position     int      `json:"position"`
	SetNumber    int      `json:"setNumber"`
	Reps         *int     `json:"reps,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
}

func (pa PlannedActual) Logged() bool {
	return pa.Reps != nil
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
