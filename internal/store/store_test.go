package store

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Source:  "data/temperaturas.csv",
		Kind:    models.PeriodMonth,
		Mapping: dataset.ColumnMapping{City: "City", Period: "dt", Temp: "AverageTemperature"},
		Skipped: 2,
		Observations: []models.Observation{
			{City: "CDMX", Period: models.MonthPeriod(1), Temp: sql.NullFloat64{Float64: 20, Valid: true}},
			{City: "CDMX", Period: models.MonthPeriod(1)},
			{City: "Monterrey", Period: models.MonthPeriod(12), Temp: sql.NullFloat64{Float64: 14.5, Valid: true}},
		},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", v, len(migrations))
	}
}

func TestLoadDataset_Empty(t *testing.T) {
	store := setupTestStore(t)

	imp, err := store.LastImport()
	if err != nil {
		t.Fatalf("LastImport: %v", err)
	}
	if imp != nil {
		t.Errorf("LastImport = %+v, want nil", imp)
	}
	if _, err := store.LoadDataset(); !errors.Is(err, ErrNoImport) {
		t.Errorf("LoadDataset err = %v, want ErrNoImport", err)
	}
}

func TestReplaceAndLoadDataset(t *testing.T) {
	store := setupTestStore(t)

	imp, err := store.ReplaceObservations(testDataset(), "Mexico")
	if err != nil {
		t.Fatalf("ReplaceObservations: %v", err)
	}
	if imp.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", imp.RowCount)
	}

	ds, err := store.LoadDataset()
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Observations) != 3 {
		t.Fatalf("len(Observations) = %d, want 3", len(ds.Observations))
	}
	if ds.Kind != models.PeriodMonth {
		t.Errorf("Kind = %q, want month", ds.Kind)
	}
	if ds.Mapping.Period != "dt" {
		t.Errorf("Mapping.Period = %q, want dt", ds.Mapping.Period)
	}
	if ds.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", ds.Skipped)
	}

	first := ds.Observations[0]
	if first.Period != models.MonthPeriod(1) || !first.Temp.Valid || first.Temp.Float64 != 20 {
		t.Errorf("first = %+v", first)
	}
	if ds.Observations[1].Temp.Valid {
		t.Error("missing temperature should round-trip as NULL")
	}

	last, err := store.LastImport()
	if err != nil {
		t.Fatalf("LastImport: %v", err)
	}
	if last.ID != imp.ID || last.Country.String != "Mexico" {
		t.Errorf("LastImport = %+v", last)
	}
}

func TestReplaceObservations_ReplacesPrevious(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.ReplaceObservations(testDataset(), ""); err != nil {
		t.Fatal(err)
	}
	second := &dataset.Dataset{
		Source: "other.csv",
		Kind:   models.PeriodLabel,
		Observations: []models.Observation{
			{City: "Puebla", Period: models.LabelPeriod("2020-01"), Temp: sql.NullFloat64{Float64: 16, Valid: true}},
		},
	}
	if _, err := store.ReplaceObservations(second, ""); err != nil {
		t.Fatal(err)
	}

	ds, err := store.LoadDataset()
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Observations) != 1 || ds.Observations[0].City != "Puebla" {
		t.Fatalf("Observations = %+v", ds.Observations)
	}
	if p := ds.Observations[0].Period; p.Month != 0 || p.Label != "2020-01" {
		t.Errorf("Period = %+v", p)
	}
	if ds.Source != "other.csv" {
		t.Errorf("Source = %q", ds.Source)
	}
}
