package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/httputil"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
	"github.com/monseeglzg-netizen/blank-app/internal/predictor"
	"github.com/monseeglzg-netizen/blank-app/internal/session"
	"github.com/monseeglzg-netizen/blank-app/internal/source"
	"github.com/monseeglzg-netizen/blank-app/internal/store"
)

func (g *Globals) datasetOptions() (dataset.Options, error) {
	delim := g.Delimiter
	switch strings.ToLower(delim) {
	case "tab", `\t`:
		delim = "\t"
	}
	r, size := utf8.DecodeRuneInString(delim)
	if r == utf8.RuneError || size != len(delim) {
		return dataset.Options{}, fmt.Errorf("delimiter must be a single character, got %q", g.Delimiter)
	}
	return dataset.Options{
		Columns: dataset.ColumnMapping{
			City:    g.CityColumn,
			Period:  g.PeriodColumn,
			Temp:    g.TempColumn,
			Country: g.CountryColumn,
		},
		Country:   g.Country,
		Kind:      models.PeriodKind(g.PeriodKind),
		Encoding:  g.Encoding,
		Delimiter: r,
	}, nil
}

// openStore opens the snapshot database, or returns nil when --db is unset.
func (g *Globals) openStore() (*store.Store, func(), error) {
	if g.DB == "" {
		return nil, func() {}, nil
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func (g *Globals) loadDataset(ctx context.Context, st *store.Store) (*dataset.Dataset, error) {
	if g.FromDB {
		if st == nil {
			return nil, fmt.Errorf("--from-db requires --db")
		}
		ds, err := st.LoadDataset()
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		log.Printf("loaded %d observations from snapshot of %s", len(ds.Observations), ds.Source)
		return ds, nil
	}

	opts, err := g.datasetOptions()
	if err != nil {
		return nil, err
	}
	fetcher := source.NewFetcher(httputil.NewClient())
	ds, err := dataset.Load(ctx, fetcher, g.Data, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d observations from %s (%d rows skipped)", len(ds.Observations), g.Data, ds.Skipped)
	return ds, nil
}

// loadModel returns nil when no model is configured.
func (g *Globals) loadModel(ctx context.Context) (*predictor.Model, error) {
	if g.Model == "" && g.ModelEndpoint == "" && g.Schema == "" {
		return nil, nil
	}
	fetcher := source.NewFetcher(httputil.NewClient())
	return predictor.Load(ctx, fetcher, predictor.Options{
		ModelURI:  g.Model,
		SchemaURI: g.Schema,
		Endpoint:  g.ModelEndpoint,
	})
}

func (g *Globals) newSession(ctx context.Context, st *store.Store) (*session.Session, error) {
	ds, err := g.loadDataset(ctx, st)
	if err != nil {
		return nil, err
	}
	model, err := g.loadModel(ctx)
	if err != nil {
		return nil, err
	}
	return session.New(ds, model), nil
}
