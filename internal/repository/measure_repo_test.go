package repository

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"capteur/internal/models"
	"capteur/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

var measureRowColumns = []string{"id", "timestamp", "capteur", "temperature", "humidity", "received_at"}

func TestInsert_SQLite_WithDefaults(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	repo := NewMeasureSQL(conn, db.SQLite)
	ts := time.Date(2024, 11, 14, 20, 15, 30, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "t_measures" (id, timestamp, capteur, temperature, humidity, received_at) VALUES (?, ?, ?, ?, ?, ?)`)).
		WithArgs(sqlmock.AnyArg(), "2024-11-14 20:15:30", "capteur-01", 21.5, 45.25, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Insert(ctx(t), models.MeasureRecord{
		Timestamp:   ts,
		CapteurID:   " capteur-01 ",
		Temperature: 21.5,
		Humidity:    45.25,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestInsert_Postgres_Placeholders(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	repo := NewMeasureSQL(conn, db.Postgres)
	ts := time.Date(2024, 11, 14, 20, 15, 30, 0, time.UTC)
	recv := ts.Add(time.Second)

	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs("id-1", ts, "c", 1.0, 2.0, recv).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Insert(ctx(t), models.MeasureRecord{ID: "id-1", Timestamp: ts, CapteurID: "c", Temperature: 1, Humidity: 2, ReceivedAt: recv})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestInsert_DBError(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("down"))

	err = NewMeasureSQL(conn, db.SQLite).Insert(ctx(t), models.MeasureRecord{CapteurID: "c"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_WithFilters(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := `SELECT id, timestamp, capteur, temperature, humidity, received_at FROM "t_measures" WHERE timestamp >= ? AND timestamp <= ? AND capteur = ? ORDER BY timestamp ASC`
	rows := sqlmock.NewRows(measureRowColumns).
		AddRow("a", from, "c1", 20.0, 40.0, from).
		AddRow("b", to, "c1", 21.0, 41.0, to)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", "c1").
		WillReturnRows(rows)

	got, err := NewMeasureSQL(conn, db.SQLite).List(ctx(t), from, to, " c1 ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].Temperature != 21 {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_NoFilters_Postgres(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, timestamp, capteur, temperature, humidity, received_at FROM "t_measures" ORDER BY timestamp ASC`)).
		WillReturnRows(sqlmock.NewRows(measureRowColumns))

	got, err := NewMeasureSQL(conn, db.Postgres).List(ctx(t), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty, got %d", len(got))
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	rows := sqlmock.NewRows(measureRowColumns).
		// timestamp wrong type to force scan error
		AddRow("x", 123, "c", 1.0, 1.0, time.Now())
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	if _, err := NewMeasureSQL(conn, db.SQLite).List(ctx(t), time.Time{}, time.Time{}, ""); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
}

func TestLatest(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`WHERE capteur = $1 ORDER BY timestamp DESC LIMIT 1`)

	mock.ExpectQuery(query).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(measureRowColumns).AddRow("a", ts, "c1", 20.0, 40.0, ts))
	mock.ExpectQuery(query).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(measureRowColumns))

	repo := NewMeasureSQL(conn, db.Postgres)
	got, err := repo.Latest(ctx(t), "c1")
	if err != nil || got.ID != "a" {
		t.Fatalf("Latest = %+v, %v", got, err)
	}
	if _, err := repo.Latest(ctx(t), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestMeasureSQL_SQLiteRoundTrip(t *testing.T) {
	conn, err := db.InitDB(db.SQLite, filepath.Join(t.TempDir(), "capteur.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer conn.Close()

	repo := NewRepository(conn, db.SQLite).Measures
	base := time.Date(2024, 11, 14, 20, 15, 30, 0, time.UTC)
	for i, id := range []string{"c1", "c2", "c1"} {
		err := repo.Insert(ctx(t), models.MeasureRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			CapteurID:   id,
			Temperature: 20 + float64(i),
			Humidity:    40,
		})
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	got, err := repo.List(ctx(t), base, base.Add(time.Hour), "c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Temperature != 20 || got[1].Temperature != 22 {
		t.Fatalf("List = %+v", got)
	}

	latest, err := repo.Latest(ctx(t), "c1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("latest timestamp = %v", latest.Timestamp)
	}
}

func TestParseDialect(t *testing.T) {
	if d, err := db.ParseDialect("postgres"); err != nil || d != db.Postgres {
		t.Fatalf("ParseDialect(postgres) = %v, %v", d, err)
	}
	if _, err := db.ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for mysql")
	}
}
