package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

// ErrNoImport is returned when the database holds no dataset snapshot yet.
var ErrNoImport = errors.New("no dataset imported")

// Store keeps an SQLite snapshot of a loaded dataset so later sessions can
// start without re-reading and re-detecting the source file.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type Import struct {
	ID         int64
	Source     string
	PeriodKind models.PeriodKind
	Mapping    dataset.ColumnMapping
	Country    sql.NullString
	RowCount   int
	Skipped    int
	ImportedAt time.Time
}

// ReplaceObservations swaps the stored snapshot for ds in one transaction
// and returns the new import.
func (s *Store) ReplaceObservations(ds *dataset.Dataset, country string) (*Import, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	imp := &Import{
		Source:     ds.Source,
		PeriodKind: ds.Kind,
		Mapping:    ds.Mapping,
		Country:    sql.NullString{String: country, Valid: country != ""},
		RowCount:   len(ds.Observations),
		Skipped:    ds.Skipped,
		ImportedAt: time.Now().UTC(),
	}
	res, err := tx.Exec(`
		INSERT INTO imports (source, period_kind, city_column, period_column, temp_column, country, row_count, skipped, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, imp.Source, string(imp.PeriodKind), imp.Mapping.City, imp.Mapping.Period, imp.Mapping.Temp, imp.Country, imp.RowCount, imp.Skipped, imp.ImportedAt)
	if err != nil {
		return nil, fmt.Errorf("insert import: %w", err)
	}
	imp.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("import id: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM observations`); err != nil {
		return nil, fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO observations (import_id, city, period_label, period_month, temp)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range ds.Observations {
		month := sql.NullInt64{Int64: int64(o.Period.Month), Valid: o.Period.IsMonth()}
		if _, err := stmt.Exec(imp.ID, o.City, o.Period.Label, month, o.Temp); err != nil {
			return nil, fmt.Errorf("insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return imp, nil
}

// LastImport returns the most recent import, or nil when there is none.
func (s *Store) LastImport() (*Import, error) {
	row := s.db.QueryRow(`
		SELECT id, source, period_kind, city_column, period_column, temp_column, country, row_count, skipped, imported_at
		FROM imports
		ORDER BY id DESC
		LIMIT 1
	`)

	var imp Import
	var kind string
	var city, period, temp sql.NullString
	err := row.Scan(&imp.ID, &imp.Source, &kind, &city, &period, &temp, &imp.Country, &imp.RowCount, &imp.Skipped, &imp.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	imp.PeriodKind = models.PeriodKind(kind)
	imp.Mapping = dataset.ColumnMapping{City: city.String, Period: period.String, Temp: temp.String}
	return &imp, nil
}

// LoadDataset rebuilds the dataset of the most recent import.
func (s *Store) LoadDataset() (*dataset.Dataset, error) {
	imp, err := s.LastImport()
	if err != nil {
		return nil, fmt.Errorf("last import: %w", err)
	}
	if imp == nil {
		return nil, ErrNoImport
	}

	rows, err := s.db.Query(`
		SELECT city, period_label, period_month, temp
		FROM observations
		WHERE import_id = ?
		ORDER BY id ASC
	`, imp.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := &dataset.Dataset{
		Source:       imp.Source,
		Kind:         imp.PeriodKind,
		Mapping:      imp.Mapping,
		Skipped:      imp.Skipped,
		Observations: make([]models.Observation, 0, imp.RowCount),
	}
	for rows.Next() {
		var o models.Observation
		var month sql.NullInt64
		if err := rows.Scan(&o.City, &o.Period.Label, &month, &o.Temp); err != nil {
			return nil, err
		}
		if month.Valid {
			o.Period.Month = int(month.Int64)
		}
		ds.Observations = append(ds.Observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ds.Observations) == 0 {
		return nil, dataset.ErrNoRows
	}
	return ds, nil
}
