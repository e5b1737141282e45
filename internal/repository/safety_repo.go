package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cheew/terratherm/internal/models"
)

type SafetySQLite struct {
	db *sql.DB
}

func NewSafetySQLite(db *sql.DB) *SafetySQLite {
	return &SafetySQLite{db: db}
}

var _ SafetyRepo = (*SafetySQLite)(nil)

const (
	safetyRowID = 1

	upsertSafetySQL = `
		INSERT INTO safety_state (id, safe_mode, reason, boot_count, last_boot_at,
			stable_marked_at, watchdog_enabled, watchdog_dirty, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			safe_mode=excluded.safe_mode,
			reason=excluded.reason,
			boot_count=excluded.boot_count,
			last_boot_at=excluded.last_boot_at,
			stable_marked_at=excluded.stable_marked_at,
			watchdog_enabled=excluded.watchdog_enabled,
			watchdog_dirty=excluded.watchdog_dirty,
			updated_at=excluded.updated_at
	`

	selectSafetySQL = `
		SELECT id, safe_mode, reason, boot_count, last_boot_at,
			stable_marked_at, watchdog_enabled, watchdog_dirty, updated_at
		FROM safety_state WHERE id=?
	`
)

// Save upserts the singleton safety row (id always 1).
func (r *SafetySQLite) Save(ctx context.Context, s models.SafetyState) error {
	tsUTC := s.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertSafetySQL,
		safetyRowID,
		s.SafeMode,
		string(s.Reason),
		s.BootCount,
		nullableTime(s.LastBootAt),
		nullableTime(s.StableMarkedAt),
		s.WatchdogEnabled,
		s.WatchdogDirty,
		tsUTC,
	)
	return err
}

// Load fetches the singleton safety row. A zero-ID state means no row yet.
func (r *SafetySQLite) Load(ctx context.Context) (models.SafetyState, error) {
	row := r.db.QueryRowContext(ctx, selectSafetySQL, safetyRowID)

	var s models.SafetyState
	var reason string
	var lastBoot, stableMarked sql.NullTime
	if err := row.Scan(
		&s.ID,
		&s.SafeMode,
		&reason,
		&s.BootCount,
		&lastBoot,
		&stableMarked,
		&s.WatchdogEnabled,
		&s.WatchdogDirty,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SafetyState{}, nil // no state yet
		}
		return models.SafetyState{}, err
	}
	s.Reason = models.SafeModeReason(reason)
	if lastBoot.Valid {
		s.LastBootAt = lastBoot.Time.UTC()
	}
	if stableMarked.Valid {
		s.StableMarkedAt = stableMarked.Time.UTC()
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// nullableTime maps zero times to SQL NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
