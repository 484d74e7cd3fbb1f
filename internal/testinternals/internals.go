package testinternals

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/2beens/gymplan/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const testDBName = "gymplan_test"

// Postgres is a migrated test database. When POSTGRES_HOST is set it points there,
// otherwise a throwaway container is started with dockertest.
type Postgres struct {
	Pool *pgxpool.Pool
	Host string
	Port string

	dockerPool *dockertest.Pool
	teardown   []func()
}

func NewPostgres(ctx context.Context) (*Postgres, error) {
	pg := &Postgres{
		teardown: make([]func(), 0),
	}

	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	password := os.Getenv("POSTGRES_PASSWORD")
	if host == "" {
		var err error
		port, err = pg.runContainer()
		if err != nil {
			pg.Cleanup()
			return nil, err
		}
		host = "localhost"
		password = "postgres"
	}
	if port == "" {
		port = "5432"
	}
	pg.Host, pg.Port = host, port

	connect := func() error {
		pool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:     host,
			DBPort:     port,
			DBName:     testDBName,
			DBPassword: password,
			MaxConns:   16,
		})
		if err != nil {
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		pg.Pool = pool
		return nil
	}

	var err error
	if pg.dockerPool != nil {
		pg.dockerPool.MaxWait = time.Minute
		err = pg.dockerPool.Retry(connect)
	} else {
		err = connect()
	}
	if err != nil {
		pg.Cleanup()
		return nil, fmt.Errorf("connect to test postgres [%s:%s]: %w", host, port, err)
	}

	if err := db.Migrate(ctx, pg.Pool); err != nil {
		pg.Cleanup()
		return nil, fmt.Errorf("migrate test db: %w", err)
	}

	return pg, nil
}

func (pg *Postgres) runContainer() (string, error) {
	var err error
	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	pg.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		return "", fmt.Errorf("could not create new dockertest pool: %w", err)
	}
	if err = pg.dockerPool.Client.Ping(); err != nil {
		return "", fmt.Errorf("could not ping dockertest pool: %w", err)
	}

	pgResource, err := pg.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=" + testDBName,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %w", err)
	}
	if err := pgResource.Expire(300); err != nil {
		log.Printf("set postgres container expiry: %s", err)
	}

	pg.teardown = append(pg.teardown, func() {
		if err := pg.dockerPool.Purge(pgResource); err != nil {
			log.Printf("purge postgres container: %s", err)
		}
	})

	return pgResource.GetPort("5432/tcp"), nil
}

// Truncate empties every gymplan table and resets the id sequences.
func (pg *Postgres) Truncate(ctx context.Context) error {
	_, err := pg.Pool.Exec(
		ctx,
		fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(db.GymplanTables, ", ")),
	)
	if err != nil {
		return fmt.Errorf("truncate gymplan tables: %w", err)
	}
	return nil
}

func (pg *Postgres) Count(ctx context.Context, table string) (int, error) {
	var count int
	if err := pg.Pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// Cleanup closes the pool and removes the container, if one was started.
// Safe to call more than once.
func (pg *Postgres) Cleanup() {
	if pg.Pool != nil {
		pg.Pool.Close()
		pg.Pool = nil
	}
	for _, teardown := range pg.teardown {
		teardown()
	}
	pg.teardown = nil
}
