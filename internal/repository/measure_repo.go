package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"capteur/internal/models"
	"capteur/internal/repository/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// sqliteTimeLayout is the TIMESTAMP text form modernc/sqlite parses back.
const sqliteTimeLayout = "2006-01-02 15:04:05"

var measuresTable = pq.QuoteIdentifier("t_measures")

const measureColumns = `id, timestamp, capteur, temperature, humidity, received_at`

type MeasureSQL struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewMeasureSQL(conn *sql.DB, dialect db.Dialect) *MeasureSQL {
	return &MeasureSQL{db: conn, dialect: dialect}
}

// Insert stores one measure. Empty ID and zero ReceivedAt are filled in.
func (r *MeasureSQL) Insert(ctx context.Context, rec models.MeasureRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	q := r.rebind(`INSERT INTO ` + measuresTable + ` (` + measureColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		r.timeArg(rec.Timestamp),
		strings.TrimSpace(rec.CapteurID),
		rec.Temperature,
		rec.Humidity,
		r.timeArg(rec.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("insert measure: %w", err)
	}
	return nil
}

// List returns measures filtered by [from, to] (inclusive) and/or capteur,
// ordered by timestamp ascending.
func (r *MeasureSQL) List(ctx context.Context, from, to time.Time, capteur string) ([]models.MeasureRecord, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, r.timeArg(from))
	}
	if !to.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, r.timeArg(to))
	}
	if capteur = strings.TrimSpace(capteur); capteur != "" {
		conds = append(conds, "capteur = ?")
		args = append(args, capteur)
	}

	q := `SELECT ` + measureColumns + ` FROM ` + measuresTable
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY timestamp ASC"

	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list measures: %w", err)
	}
	defer rows.Close()

	out := make([]models.MeasureRecord, 0, 64)
	for rows.Next() {
		rec, err := scanMeasure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the newest measure of a capteur or ErrNotFound.
func (r *MeasureSQL) Latest(ctx context.Context, capteur string) (models.MeasureRecord, error) {
	q := r.rebind(`SELECT ` + measureColumns + ` FROM ` + measuresTable +
		` WHERE capteur = ? ORDER BY timestamp DESC LIMIT 1`)
	rec, err := scanMeasure(r.db.QueryRowContext(ctx, q, strings.TrimSpace(capteur)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MeasureRecord{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeasure(s scanner) (models.MeasureRecord, error) {
	var rec models.MeasureRecord
	if err := s.Scan(&rec.ID, &rec.Timestamp, &rec.CapteurID, &rec.Temperature, &rec.Humidity, &rec.ReceivedAt); err != nil {
		return models.MeasureRecord{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.ReceivedAt = rec.ReceivedAt.UTC()
	return rec, nil
}

func (r *MeasureSQL) timeArg(t time.Time) any {
	if r.dialect == db.Postgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

// rebind turns ? placeholders into $n for postgres.
func (r *MeasureSQL) rebind(q string) string {
	if r.dialect != db.Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
