// Command pollingclient tails a PostgreSQL commit table, logs every commit
// and persists its checkpoint so a restart resumes where it stopped.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
	"github.com/shogotsuneto/go-simple-pollingclient/checkpoint"
	s3checkpoint "github.com/shogotsuneto/go-simple-pollingclient/checkpoint/s3"
	"github.com/shogotsuneto/go-simple-pollingclient/config"
	"github.com/shogotsuneto/go-simple-pollingclient/postgres"
	pcprometheus "github.com/shogotsuneto/go-simple-pollingclient/prometheus"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional, POLLINGCLIENT_* env vars override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("polling client failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return errors.Wrap(err, "failed to open database connection")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}

	if err := postgres.InitSchema(db, cfg.Postgres.CommitsTable); err != nil {
		return err
	}
	commits, err := postgres.NewCommitStore(db, cfg.Postgres.CommitsTable, postgres.WithPageSize(cfg.Postgres.PageSize))
	if err != nil {
		return err
	}

	checkpoints, err := newCheckpointStore(ctx, cfg, db)
	if err != nil {
		return err
	}

	start, err := checkpoint.Resume(ctx, checkpoints, cfg.Checkpoint.Name)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := pollingclient.New(commits, pollingclient.HandlerFunc(logCommit(log)),
		pollingclient.WithName(cfg.Name),
		pollingclient.WithWaitInterval(cfg.WaitInterval),
		pollingclient.WithLogger(log),
		pollingclient.WithMetrics(pcprometheus.NewMetrics(reg, cfg.Name)),
		pollingclient.WithContext(ctx),
		pollingclient.WithMiddlewares(
			pollingclient.NewLogMiddleware(log),
			checkpoint.Middleware(checkpoints, cfg.Checkpoint.Name),
		),
	)
	if err != nil {
		return err
	}
	defer client.Dispose()

	if cfg.Bucket == "" {
		err = client.StartFrom(start)
	} else {
		err = client.StartFromBucket(cfg.Bucket, start)
	}
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			client.Dispose()
		case <-client.Done():
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Wait(waitCtx); err != nil {
			return errors.Wrap(err, "polling loop did not exit")
		}
		log.Info("polling client exited", zap.Int64("checkpoint", client.Checkpoint()))
		if ctx.Err() == nil {
			// stopped by the handler, bring the metrics server down too
			return errors.New("polling client stopped")
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newCheckpointStore(ctx context.Context, cfg *config.Config, db *sql.DB) (checkpoint.Store, error) {
	switch cfg.Checkpoint.Backend {
	case config.BackendMemory:
		return checkpoint.NewInMemoryStore(), nil
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		return s3checkpoint.New(awss3.NewFromConfig(awsCfg), cfg.S3.Bucket, cfg.S3.Prefix)
	default:
		if err := postgres.InitCheckpointSchema(db, cfg.Postgres.CheckpointsTable); err != nil {
			return nil, err
		}
		return postgres.NewCheckpointStore(db, cfg.Postgres.CheckpointsTable)
	}
}

func logCommit(log *zap.Logger) func(context.Context, pollingclient.Commit) (pollingclient.HandlingResult, error) {
	return func(_ context.Context, c pollingclient.Commit) (pollingclient.HandlingResult, error) {
		types := make([]string, 0, len(c.Events))
		for _, e := range c.Events {
			types = append(types, e.Type)
		}
		log.Info("commit",
			zap.Int64("checkpoint_token", c.CheckpointToken),
			zap.String("bucket_id", c.BucketID),
			zap.String("stream_id", c.StreamID),
			zap.Int64("stream_revision", c.StreamRevision),
			zap.Strings("event_types", types),
		)
		return pollingclient.Continue, nil
	}
}
