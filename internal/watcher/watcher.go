package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// RepoSource lists the repositories the watcher should cover
type RepoSource interface {
	ListWatched(ctx context.Context) ([]models.Repo, error)
}

// Watcher translates filesystem events for enabled auto-watch repos into
// queued reindex jobs with burst coalescing. It is single-threaded
// cooperative: one loop owns the pending map and suspends until either the
// debounce ticker fires or the next event arrives; it never claims jobs.
type Watcher struct {
	cfg    config.WatcherConfig
	queue  queue.Queue
	repos  RepoSource
	logger logger.Logger

	extensions map[string]bool

	// watched roots, longest path first, for event-to-repo projection
	roots []watchedRoot
}

type watchedRoot struct {
	root       string
	repoName   string
	schemaName string
}

// New creates a watcher
func New(cfg config.WatcherConfig, q queue.Queue, repos RepoSource, log logger.Logger) *Watcher {
	exts := make(map[string]bool)
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		cfg:        cfg,
		queue:      q,
		repos:      repos,
		logger:     log.Named("watcher"),
		extensions: exts,
	}
}

// Run watches until ctx is cancelled. Pending events are flushed one last
// time on the way out.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create filesystem watcher").
			WithCode(errors.CodeInternal)
	}
	defer fsw.Close()

	if err := w.registerRepos(ctx, fsw); err != nil {
		return err
	}

	debounce := time.Duration(w.cfg.DebounceMS) * time.Millisecond
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	pending := newCoalescer()

	w.logger.Info("watcher started", "debounce_ms", w.cfg.DebounceMS, "repos", len(w.roots))

	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx), pending)
			w.logger.Info("watcher stopped")
			return nil

		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, fsEvent, pending)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)

		case <-ticker.C:
			if pending.Len() > 0 {
				w.flush(ctx, pending)
			}
		}
	}
}

// registerRepos walks each watched repo and registers every directory,
// since fsnotify watches are not recursive.
func (w *Watcher) registerRepos(ctx context.Context, fsw *fsnotify.Watcher) error {
	repos, err := w.repos.ListWatched(ctx)
	if err != nil {
		return err
	}

	if len(repos) == 0 {
		w.logger.Warn("no repos configured for watching")
	}

	for _, repo := range repos {
		root := filepath.Clean(repo.RootPath)
		if err := w.addRecursive(fsw, root); err != nil {
			w.logger.Warn("cannot watch repo", "repo", repo.Name, "root", root, "error", err)
			continue
		}

		w.roots = append(w.roots, watchedRoot{
			root:       root,
			repoName:   repo.Name,
			schemaName: repo.SchemaName,
		})

		w.logger.Info("watching repo", "repo", repo.Name, "root", root)
	}

	// Longest root first so nested checkouts project to the inner repo
	for i := 1; i < len(w.roots); i++ {
		for j := i; j > 0 && len(w.roots[j].root) > len(w.roots[j-1].root); j-- {
			w.roots[j], w.roots[j-1] = w.roots[j-1], w.roots[j]
		}
	}

	return nil
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}

		return fsw.Add(path)
	})
}

// handleEvent projects a raw fsnotify event into the pending map
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, fsEvent fsnotify.Event, pending *coalescer) {
	path := filepath.Clean(fsEvent.Name)

	// New directories need their own watches
	if fsEvent.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, path); err != nil {
				w.logger.Debug("cannot watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	target, rel, ok := w.project(path)
	if !ok {
		return
	}

	var op models.FileOp
	var reason string

	switch {
	case fsEvent.Op.Has(fsnotify.Create):
		op, reason = models.FileOpUpsert, "file_created"
	case fsEvent.Op.Has(fsnotify.Write):
		op, reason = models.FileOpUpsert, "file_modified"
	case fsEvent.Op.Has(fsnotify.Remove):
		op, reason = models.FileOpDelete, "file_deleted"
	case fsEvent.Op.Has(fsnotify.Rename):
		// A move emits Rename on the old path and Create on the new one
		op, reason = models.FileOpDelete, "file_moved_from"
	default:
		return
	}

	pending.Add(Event{
		RepoName:   target.repoName,
		SchemaName: target.schemaName,
		Path:       rel,
		Op:         op,
		Reason:     reason,
	})
}

// project maps an absolute path onto a watched repo and its relative path,
// applying the extension and ignore filters.
func (w *Watcher) project(path string) (watchedRoot, string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root.root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}

		if !w.extensions[strings.ToLower(filepath.Ext(rel))] {
			return watchedRoot{}, "", false
		}
		if w.ignored(rel) {
			return watchedRoot{}, "", false
		}

		return root, filepath.ToSlash(rel), true
	}

	return watchedRoot{}, "", false
}

func (w *Watcher) ignored(rel string) bool {
	for _, pattern := range w.cfg.IgnorePatterns {
		if strings.Contains(rel, pattern) {
			return true
		}
	}

	return false
}

func (w *Watcher) flush(ctx context.Context, pending *coalescer) {
	requests := pending.Flush()
	if len(requests) == 0 {
		return
	}

	w.logger.Info("flushing file events", "jobs", len(requests))

	for _, req := range requests {
		res, err := w.queue.Enqueue(ctx, req)
		if err != nil {
			w.logger.Error("failed to enqueue watch job",
				"repo", req.RepoName, "job_type", req.JobType, "error", err)
			continue
		}

		if !res.Deduplicated {
			w.logger.Info("enqueued watch job",
				"repo", req.RepoName, "job_type", req.JobType, "job_id", res.JobID)
		}
	}
}
