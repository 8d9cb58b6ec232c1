package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"capteur/internal/models"
	"capteur/internal/repository/db"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

type MeasureRepo interface {
	Insert(ctx context.Context, rec models.MeasureRecord) error
	List(ctx context.Context, from, to time.Time, capteur string) ([]models.MeasureRecord, error)
	Latest(ctx context.Context, capteur string) (models.MeasureRecord, error)
}

type Repository struct {
	Measures MeasureRepo
}

func NewRepository(conn *sql.DB, dialect db.Dialect) *Repository {
	return &Repository{
		Measures: NewMeasureSQL(conn, dialect),
	}
}
