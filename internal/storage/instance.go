package storage

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

// Instances manages daemon instance rows in the control namespace
type Instances struct {
	db *sqlx.DB
}

// NewInstances creates a new daemon instance repository
func NewInstances(db *sqlx.DB) *Instances {
	return &Instances{db: db}
}

// Register upserts this instance as RUNNING with its redacted config snapshot
func (i *Instances) Register(ctx context.Context, instanceID string, configSnapshot []byte) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO robomonkey_control.daemon_instance (instance_id, config)
		VALUES ($1, $2)
		ON CONFLICT (instance_id) DO UPDATE SET
			started_at = now(),
			last_heartbeat = now(),
			status = 'RUNNING',
			config = EXCLUDED.config`,
		instanceID, configSnapshot)
	if err != nil {
		return errors.Wrap(err, "failed to register daemon instance").
			WithCode(errors.CodeDatabase)
	}

	return nil
}

// Heartbeat refreshes last_heartbeat for this instance
func (i *Instances) Heartbeat(ctx context.Context, instanceID string) error {
	_, err := i.db.ExecContext(ctx, `
		UPDATE robomonkey_control.daemon_instance
		SET last_heartbeat = now()
		WHERE instance_id = $1`,
		instanceID)
	if err != nil {
		return errors.Wrap(err, "failed to update heartbeat").
			WithCode(errors.CodeDatabase)
	}

	return nil
}

// MarkStopped records a clean shutdown
func (i *Instances) MarkStopped(ctx context.Context, instanceID string) error {
	_, err := i.db.ExecContext(ctx, `
		UPDATE robomonkey_control.daemon_instance
		SET status = 'STOPPED', last_heartbeat = now()
		WHERE instance_id = $1`,
		instanceID)
	if err != nil {
		return errors.Wrap(err, "failed to mark instance stopped").
			WithCode(errors.CodeDatabase)
	}

	return nil
}

// List returns all known daemon instances
func (i *Instances) List(ctx context.Context) ([]models.DaemonInstance, error) {
	var instances []models.DaemonInstance
	err := i.db.SelectContext(ctx, &instances, `
		SELECT instance_id, started_at, last_heartbeat, status, config
		FROM robomonkey_control.daemon_instance
		ORDER BY last_heartbeat DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list daemon instances").
			WithCode(errors.CodeDatabase)
	}

	return instances, nil
}
