package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/repository/db"
)

// InitDB opens the SQLite store and ensures the schema.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// OutputConfigRepo persists per-output configuration, one row per channel.
type OutputConfigRepo interface {
	Save(ctx context.Context, o models.Output) error
	Load(ctx context.Context, index int) (models.Output, error)
	LoadAll(ctx context.Context) ([]models.Output, error)
}

// SafetyRepo persists the supervisor's singleton state row.
type SafetyRepo interface {
	Save(ctx context.Context, s models.SafetyState) error
	Load(ctx context.Context) (models.SafetyState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type Repository struct {
	OutputRepo OutputConfigRepo
	SafetyRepo SafetyRepo
	EventRepo  EventRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		OutputRepo: NewOutputSQLite(db),
		SafetyRepo: NewSafetySQLite(db),
		EventRepo:  NewEventSQLite(db),
		Auth:       NewUserRepository(db),
	}
}
