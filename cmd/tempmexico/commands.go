package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/monseeglzg-netizen/blank-app/internal/api"
	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
	"github.com/monseeglzg-netizen/blank-app/internal/session"
)

type ServeCmd struct {
	Port string `help:"HTTP server port." default:"8080" env:"PORT"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	sess, err := g.newSession(ctx, st)
	var server *api.Server
	switch {
	case errors.Is(err, dataset.ErrMissingColumn):
		// Serve the explanation instead of partial results.
		log.Printf("dataset unusable: %v", err)
		server = api.NewUnavailableServer(err, c.Port)
	case err != nil:
		return err
	default:
		if st != nil && !g.FromDB {
			imp, err := st.ReplaceObservations(sess.Dataset(), g.Country)
			if err != nil {
				return fmt.Errorf("snapshot dataset: %w", err)
			}
			log.Printf("snapshot %d stored (%d observations)", imp.ID, imp.RowCount)
		}
		server = api.NewServer(sess, c.Port)
		server.SetStore(st)
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type EstimateCmd struct {
	City   string `help:"City name, matched exactly." required:""`
	Period string `help:"Period: month number or name, or a free-form label with --period-kind=label." required:""`
}

func (c *EstimateCmd) Run(ctx context.Context, g *Globals) error {
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ds, err := g.loadDataset(ctx, st)
	if err != nil {
		return err
	}
	period, err := models.ParsePeriod(ds.Kind, c.Period)
	if err != nil {
		return err
	}

	summary := session.New(ds, nil).Estimate(c.City, period)
	if !summary.Estimate.OK {
		fmt.Printf("Sin datos históricos para %s en %s\n", c.City, period.Display())
		return nil
	}
	fmt.Printf("%s, %s: %.1f °C (%d registros)\n", c.City, period.Display(), summary.Estimate.Value, summary.Matched.Count)
	return nil
}

type PredictCmd struct {
	City  string `help:"City name as used during training." required:""`
	Month string `help:"Month number or name." required:""`
	Year  int    `help:"Year to predict (defaults to the current year)."`
}

func (c *PredictCmd) Run(ctx context.Context, g *Globals) error {
	month, err := models.ParseMonth(c.Month)
	if err != nil {
		return err
	}
	year := c.Year
	if year == 0 {
		year = time.Now().Year()
	}

	model, err := g.loadModel(ctx)
	if err != nil {
		return err
	}
	if model == nil {
		return fmt.Errorf("no model configured: set --schema with --model or --model-endpoint")
	}

	y, err := model.Estimate(ctx, c.City, month, year)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	fmt.Printf("%s, %s %d: %.1f °C (modelo)\n", c.City, models.MonthName(month), year, y)
	return nil
}

type ImportCmd struct{}

func (c *ImportCmd) Run(ctx context.Context, g *Globals) error {
	if g.DB == "" {
		return fmt.Errorf("--db is required")
	}
	if g.FromDB {
		return fmt.Errorf("--from-db cannot be used with import")
	}
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ds, err := g.loadDataset(ctx, st)
	if err != nil {
		return err
	}
	imp, err := st.ReplaceObservations(ds, g.Country)
	if err != nil {
		return fmt.Errorf("snapshot dataset: %w", err)
	}
	log.Printf("imported %d observations from %s into %s (import %d)", imp.RowCount, imp.Source, g.DB, imp.ID)
	return nil
}
