package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/processor"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/internal/schema"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// appContext wires the store-backed components management commands share
type appContext struct {
	cfg      *config.Config
	log      logger.Logger
	db       *sqlx.DB
	registry *storage.Registry
	schemas  *schema.Manager
	queue    *queue.Postgres
	procs    *processor.Registry
}

// openApp loads config, connects, and ensures the control schema
func openApp(ctx context.Context) (*appContext, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}

	if err := storage.EnsureControlSchema(ctx, db); err != nil {
		db.Close()
		log.Sync()
		return nil, nil, err
	}

	app := &appContext{
		cfg:      cfg,
		log:      log,
		db:       db,
		registry: storage.NewRegistry(db, log),
		schemas:  schema.NewManager(db, log, cfg.Embeddings.Dimension),
		queue: queue.NewPostgres(db, queue.Options{
			MaxAttempts: cfg.Jobs.MaxRetries,
			BackoffBase: time.Duration(cfg.Jobs.RetryBackoffBaseSec) * time.Second,
			BackoffCap:  time.Hour,
		}, log),
	}

	app.procs = processor.NewRegistry(processor.Deps{
		Config:   cfg,
		DB:       db,
		Schemas:  app.schemas,
		Registry: app.registry,
		Logger:   log,
	})

	cleanup := func() {
		db.Close()
		log.Sync()
	}

	return app, cleanup, nil
}

// runInline executes one processor synchronously, without the daemon
func (a *appContext) runInline(ctx context.Context, repo *models.Repo, jt models.JobType, payload json.RawMessage) error {
	proc, err := a.procs.Resolve(jt)
	if err != nil {
		return err
	}

	if len(payload) == 0 {
		payload = []byte("{}")
	}

	job := &models.Job{
		ID:          uuid.New(),
		RepoName:    repo.Name,
		SchemaName:  repo.SchemaName,
		JobType:     jt,
		Payload:     payload,
		Priority:    models.Priority(jt),
		Status:      models.JobStatusClaimed,
		Attempts:    1,
		MaxAttempts: 1,
		CreatedAt:   time.Now().UTC(),
	}

	return proc.Process(ctx, job)
}

// findRepo resolves a registration by name or opaque id. Unknown names
// print the actionable error envelope, suggestions included.
func (a *appContext) findRepo(ctx context.Context, nameOrID string) (*models.Repo, error) {
	repos, err := a.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range repos {
		if repos[i].Name == nameOrID || repos[i].ID.String() == nameOrID {
			return &repos[i], nil
		}
	}

	_, _, envelope := a.schemas.ResolveWithSuggestions(ctx, nameOrID)
	printEnvelope(envelope)

	return nil, errors.Newf("repository %q not found", nameOrID).
		WithCode(errors.CodeNotFound)
}

// findRepoByPath resolves a registration by its root path
func (a *appContext) findRepoByPath(ctx context.Context, rootPath string) (*models.Repo, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, errors.Wrap(err, "invalid repo path").WithCode(errors.CodeValidation)
	}

	repos, err := a.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range repos {
		if filepath.Clean(repos[i].RootPath) == abs {
			return &repos[i], nil
		}
	}

	return nil, errors.Newf("no registered repository has root path %s", abs).
		WithCode(errors.CodeNotFound).
		WithHint("register it with 'robomonkey index --repo <path> --name <name>'")
}

func printEnvelope(env *errors.Envelope) {
	if env == nil {
		return
	}

	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return
	}

	fmt.Fprintln(os.Stderr, string(raw))
}
