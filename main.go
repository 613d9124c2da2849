package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/alecthomas/kong"

	"github.com/shelfscan/shelfd/internal/logging"
)

// cli contains the command-line surface: serve the HTTP+WebSocket API, or
// run one-off administrative commands against the same cache the server
// uses.
type cli struct {
	Serve serveCmd `cmd:"" help:"Run the shelfd HTTP/WebSocket API."`
	Jobs  jobsCmd  `cmd:"" help:"Inspect or cancel a job by ID."`
}

// rootConfig is shared by every subcommand: the set of external systems
// shelfd talks to.
type rootConfig struct {
	RedisAddr string `default:"localhost:6379" help:"Redis address for the T2 cache/results/rate-limit tiers."`

	PostgresHost     string `help:"Postgres host for durable job state. Leave empty to use SQLite instead."`
	PostgresUser     string `default:"postgres" help:"Postgres user."`
	PostgresPassword string `default:"" help:"Postgres password."`
	PostgresPort     int    `default:"5432" help:"Postgres port."`
	PostgresDatabase string `default:"shelfd" help:"Postgres database."`
	SQLitePath       string `default:"shelfd.db" help:"SQLite file used when PostgresHost is empty."`

	ColdBucket         string `help:"S3 bucket name for the cold archive tier. The server builds no S3 client, so the cold tier stays disabled whatever this is set to."`
	ISBNdbKey          string `help:"ISBNdb API key."`
	InventaireEndpoint string `default:"https://inventaire.io/api/search" help:"Inventaire GraphQL endpoint."`
	OpenAIKey          string `help:"API key for the bookshelf vision model."`
	VisionModel        string `default:"gpt-4o" help:"Vision model name used for bookshelf scans."`
	JWTSecret          string `required:"" help:"HMAC secret signing job stream tokens."`

	ScanConfidence float64 `default:"0.6" help:"Confidence threshold above which a scan detection is auto-approved."`
	Verbose        bool    `help:"Increase log verbosity."`
}

func (c *rootConfig) Run() error { return nil }

type serveCmd struct {
	rootConfig

	Port int `default:"8788" help:"Port to serve traffic on."`
}

type jobsCmd struct {
	rootConfig

	JobID  string `arg:"" help:"Job ID to inspect."`
	Cancel bool   `help:"Cancel the job instead of just printing its state."`
}

func (s *serveCmd) Run() error {
	logging.New(s.Verbose)

	ctx := context.Background()
	e, err := newEnv(ctx, s.rootConfig)
	if err != nil {
		return fmt.Errorf("building environment: %w", err)
	}

	handler := newRouter(e)

	addr := fmt.Sprintf(":%d", s.Port)
	httpServer := &http.Server{
		Handler:      handler,
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	}

	slog.Info("listening", "addr", addr)
	return httpServer.ListenAndServe()
}

func (j *jobsCmd) Run() error {
	logging.New(j.Verbose)

	ctx := context.Background()
	e, err := newEnv(ctx, j.rootConfig)
	if err != nil {
		return err
	}

	repo, err := newJobRepository(ctx, j.rootConfig)
	if err != nil {
		return err
	}
	defer repo.Close()

	job, err := repo.Get(ctx, j.JobID)
	if err != nil {
		return err
	}

	if j.Cancel {
		e.jobs.Cancel(ctx, j.JobID)
		fmt.Println("cancel requested for", j.JobID)
		return nil
	}

	fmt.Printf("job %s: pipeline=%s state=%s processed=%d/%d created=%s\n",
		job.ID, job.Pipeline, job.State, job.Processed, job.Total, job.CreatedAt.Format(time.RFC3339))
	return nil
}

func main() {
	kctx := kong.Parse(&cli{})
	err := kctx.Run()
	if err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func init() {
	// Limit the process's memory to 90% of what's available to the cgroup
	// (or the system, outside a container); this bounds the edge cache's
	// headroom without a fixed -mem flag.
	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)
	if err != nil {
		panic(err)
	}
}
