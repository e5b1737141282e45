package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/repository"
)

func TestSafetySQLite_Save_ZeroTimesBecomeNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSafetySQLite(db)

	state := models.SafetyState{
		SafeMode:        true,
		Reason:          models.ReasonBootLoop,
		BootCount:       5,
		WatchdogEnabled: true,
		WatchdogDirty:   true,
		// LastBootAt, StableMarkedAt, UpdatedAt are zero
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO safety_state")).
		WithArgs(
			1, // singleton row id
			state.SafeMode,
			string(state.Reason),
			state.BootCount,
			nil, // zero LastBootAt -> NULL
			nil, // zero StableMarkedAt -> NULL
			state.WatchdogEnabled,
			state.WatchdogDirty,
			isRecentUTC, // zero UpdatedAt written as UTC now
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSafetySQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSafetySQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO safety_state")).
		WillReturnError(errors.New("db down"))

	if err := repo.Save(context.Background(), models.SafetyState{}); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestSafetySQLite_Load_NoRowsReturnsZeroValueAndNilError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSafetySQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM safety_state WHERE id=?")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	var zero models.SafetyState
	if !reflect.DeepEqual(got, zero) {
		t.Fatalf("Load() expected zero state, got: %+v", got)
	}
}

func TestSafetySQLite_Load_HappyPathConvertsToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSafetySQLite(db)

	locNY, _ := time.LoadLocation("America/New_York")
	lastBoot := time.Date(2026, 8, 20, 8, 30, 0, 0, locNY)
	updated := time.Date(2026, 8, 20, 9, 0, 0, 0, locNY)

	cols := []string{
		"id", "safe_mode", "reason", "boot_count", "last_boot_at",
		"stable_marked_at", "watchdog_enabled", "watchdog_dirty", "updated_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		1, true, "watchdog", 3, lastBoot, nil, true, true, updated,
	)

	mock.ExpectQuery(regexp.QuoteMeta("FROM safety_state WHERE id=?")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ID != 1 || !got.SafeMode || got.Reason != models.ReasonWatchdog || got.BootCount != 3 {
		t.Fatalf("fields mismatch: %+v", got)
	}
	if got.LastBootAt.Location() != time.UTC || !got.LastBootAt.Equal(lastBoot) {
		t.Fatalf("LastBootAt not normalized to UTC: %v", got.LastBootAt)
	}
	if !got.StableMarkedAt.IsZero() {
		t.Fatalf("NULL stable_marked_at must stay zero, got %v", got.StableMarkedAt)
	}
	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("UpdatedAt not UTC: %v", got.UpdatedAt)
	}
}
