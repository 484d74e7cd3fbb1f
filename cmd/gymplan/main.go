package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/2beens/gymplan/internal"
	"github.com/2beens/gymplan/internal/config"
	"github.com/2beens/gymplan/internal/gymplan/plan"
	"github.com/2beens/gymplan/internal/logging"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: gymplan [-env ENV] [-config PATH] <command> [flags]

commands:
  migrate                              apply the database schema
  import -owner N -file plan.json      import a plan document for user N
  report -program N -week W            print planned vs actual set totals of a week
`

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "gymplan",
	})

	log.Debugf("running in [%s] environment", cfg.Environment)

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		log.Warnln("postgres password not set, use POSTGRES_PASSWORD env var to set it")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	core, err := internal.NewCore(ctx, internal.NewCoreParams{
		Config:           cfg,
		PostgresPassword: postgresPassword,
	})
	if err != nil {
		log.Fatalf("new core: %s", err)
	}

	cmdErr := run(ctx, core, flag.Arg(0), flag.Args()[1:])

	logMetrics(core)
	core.Shutdown()

	if cmdErr != nil {
		log.Errorf("%s: %s", flag.Arg(0), cmdErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, core *internal.Core, command string, args []string) error {
	switch command {
	case "migrate":
		if err := core.Migrate(ctx); err != nil {
			return err
		}
		log.Infoln("schema migrated")
		return nil
	case "import":
		return runImport(ctx, core, args)
	case "report":
		return runReport(ctx, core, args)
	default:
		return fmt.Errorf("unknown command [%s]", command)
	}
}

func runImport(ctx context.Context, core *internal.Core, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	owner := fs.Int("owner", 0, "id of the user that will own the program")
	file := fs.String("file", "", "path of the plan document (JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner <= 0 || *file == "" {
		return fmt.Errorf("both -owner and -file are required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open plan file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("close plan file: %s", err)
		}
	}()

	doc, err := plan.ParsePlanDocument(f)
	if err != nil {
		return err
	}

	result, err := core.Importer.Import(ctx, *owner, *doc)
	if err != nil {
		return err
	}

	fmt.Printf(
		"imported program %d [%s]: %d weeks, %d days, %d exercises, %d planned sets (%d new catalog exercises)\n",
		result.Program.ID, result.Program.Title,
		result.Weeks, result.Days, result.DayExercises, result.PlannedSets, result.ExercisesCreated,
	)
	return nil
}

func runReport(ctx context.Context, core *internal.Core, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	programID := fs.Int("program", 0, "program id")
	week := fs.Int("week", 1, "week number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	planned, err := core.Projector.TotalPlannedSets(ctx, *programID, *week)
	if err != nil {
		return err
	}
	actual, err := core.Projector.TotalActualSets(ctx, *programID, *week)
	if err != nil {
		return err
	}
	groups, err := core.Projector.SetsByMuscleGroup(ctx, *programID, *week)
	if err != nil {
		return err
	}

	fmt.Printf("program %d, week %d: %d planned sets, %d logged\n", *programID, *week, planned, actual)
	for _, g := range groups {
		fmt.Printf("  %-16s %d\n", g.MuscleGroup, g.Sets)
	}
	return nil
}

func logMetrics(core *internal.Core) {
	values, err := core.MetricsSnapshot()
	if err != nil {
		log.Warnf("metrics snapshot: %s", err)
		return
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Tracef("metric %s = %v", name, values[name])
	}
}
