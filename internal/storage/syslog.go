package storage

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/pkg/logger"
)

// SystemLog writes operational events into the control namespace so other
// instances and the admin panel can see what self-healing did and why.
type SystemLog struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewSystemLog creates a system log writer
func NewSystemLog(db *sqlx.DB, log logger.Logger) *SystemLog {
	return &SystemLog{
		db:     db,
		logger: log.Named("system-log"),
	}
}

// Write records one entry. Failures are logged and swallowed: the system log
// is an observability aid, never worth failing the caller over.
func (s *SystemLog) Write(ctx context.Context, level, component, repoName, message string, details map[string]any) {
	var raw []byte
	if details != nil {
		raw, _ = json.Marshal(details)
	}

	var repo any
	if repoName != "" {
		repo = repoName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO robomonkey_control.system_log (level, component, repo_name, message, details)
		VALUES ($1, $2, $3, $4, $5)`,
		level, component, repo, message, raw)
	if err != nil {
		s.logger.Error("failed to write system log entry", "error", err, "message", message)
	}
}
