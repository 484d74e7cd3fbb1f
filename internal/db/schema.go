package db

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// GymplanTables lists the persisted tables, parents first.
var GymplanTables = []string{
	"exercise",
	"program",
	"program_week",
	"program_day",
	"program_day_exercise",
	"planned_set",
	"workout",
	"workout_exercise",
	"workout_set",
}

const schema = `
CREATE TABLE IF NOT EXISTS exercise
(
    id            SERIAL PRIMARY KEY,
    name          VARCHAR     NOT NULL,
    muscle_group  VARCHAR     NOT NULL,
    equipment     VARCHAR,
    is_global     BOOLEAN     NOT NULL DEFAULT FALSE,
    owner_user_id INTEGER,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT exercise_scope_chk CHECK (
        (is_global AND owner_user_id IS NULL) OR (NOT is_global AND owner_user_id IS NOT NULL)
    )
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_exercise_global_name ON exercise (name) WHERE is_global;
CREATE UNIQUE INDEX IF NOT EXISTS ux_exercise_owner_name ON exercise (owner_user_id, name) WHERE owner_user_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS program
(
    id            SERIAL PRIMARY KEY,
    owner_user_id INTEGER     NOT NULL,
    title         VARCHAR     NOT NULL,
    description   TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_program_owner ON program (owner_user_id);

CREATE TABLE IF NOT EXISTS program_week
(
    id          SERIAL PRIMARY KEY,
    program_id  INTEGER NOT NULL REFERENCES program (id) ON DELETE CASCADE,
    week_number INTEGER NOT NULL CHECK (week_number > 0),
    UNIQUE (program_id, week_number)
);

CREATE TABLE IF NOT EXISTS program_day
(
    id              SERIAL PRIMARY KEY,
    program_week_id INTEGER NOT NULL REFERENCES program_week (id) ON DELETE CASCADE,
    day_of_week     INTEGER NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
    UNIQUE (program_week_id, day_of_week)
);

CREATE TABLE IF NOT EXISTS program_day_exercise
(
    id             SERIAL PRIMARY KEY,
    program_day_id INTEGER NOT NULL REFERENCES program_day (id) ON DELETE CASCADE,
    exercise_id    INTEGER NOT NULL REFERENCES exercise (id),
    position       INTEGER NOT NULL CHECK (position > 0),
    notes          TEXT,
    UNIQUE (program_day_id, position)
);

CREATE TABLE IF NOT EXISTS planned_set
(
    id                      SERIAL PRIMARY KEY,
    program_day_exercise_id INTEGER NOT NULL REFERENCES program_day_exercise (id) ON DELETE CASCADE,
    set_number              INTEGER NOT NULL CHECK (set_number > 0),
    reps                    INTEGER NOT NULL CHECK (reps > 0),
    weight                  DOUBLE PRECISION,
    rpe                     DOUBLE PRECISION,
    rest_seconds            INTEGER,
    UNIQUE (program_day_exercise_id, set_number)
);

CREATE TABLE IF NOT EXISTS workout
(
    id             SERIAL PRIMARY KEY,
    owner_user_id  INTEGER     NOT NULL,
    program_day_id INTEGER     NOT NULL REFERENCES program_day (id),
    started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at    TIMESTAMPTZ,
    notes          TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_workout_open ON workout (owner_user_id, program_day_id) WHERE finished_at IS NULL;
CREATE INDEX IF NOT EXISTS ix_workout_day ON workout (program_day_id);

CREATE TABLE IF NOT EXISTS workout_exercise
(
    id                      SERIAL PRIMARY KEY,
    workout_id              INTEGER NOT NULL REFERENCES workout (id) ON DELETE CASCADE,
    program_day_exercise_id INTEGER NOT NULL REFERENCES program_day_exercise (id),
    position                INTEGER NOT NULL,
    UNIQUE (workout_id, program_day_exercise_id)
);

CREATE TABLE IF NOT EXISTS workout_set
(
    id                  SERIAL PRIMARY KEY,
    workout_exercise_id INTEGER NOT NULL REFERENCES workout_exercise (id) ON DELETE CASCADE,
    planned_set_id      INTEGER NOT NULL REFERENCES planned_set (id),
    set_number          INTEGER NOT NULL,
    reps                INTEGER NOT NULL CHECK (reps >= 0),
    weight              DOUBLE PRECISION,
    rpe                 DOUBLE PRECISION,
    rest_seconds        INTEGER,
    UNIQUE (workout_exercise_id, planned_set_id)
);
CREATE INDEX IF NOT EXISTS ix_workout_set_planned ON workout_set (planned_set_id);
`

// Migrate ensures all gymplan tables and indexes exist. Safe to call on every startup.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Debugf("schema applied, tables: %v", GymplanTables)
	return nil
}
