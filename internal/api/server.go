package api

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monseeglzg-netizen/blank-app/internal/chart"
	"github.com/monseeglzg-netizen/blank-app/internal/session"
	"github.com/monseeglzg-netizen/blank-app/internal/store"
)

type Server struct {
	sess    *session.Session
	loadErr error
	store   *store.Store
	port    string
	tmpl    *template.Template
	charts  *chart.Cache
	now     func() time.Time
}

func NewServer(sess *session.Session, port string) *Server {
	return &Server{
		sess:   sess,
		port:   port,
		tmpl:   newTemplates(),
		charts: chart.NewCache(time.Hour),
		now:    time.Now,
	}
}

// NewUnavailableServer serves an explanatory message on every page when the
// dataset could not be loaded, e.g. because a required column is missing.
func NewUnavailableServer(loadErr error, port string) *Server {
	s := NewServer(nil, port)
	s.loadErr = loadErr
	return s
}

// SetStore attaches the snapshot store so /health can report the last import.
func (s *Server) SetStore(st *store.Store) {
	s.store = st
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/chart.png", s.handleChartImage)
	mux.HandleFunc("/partials/result", s.handleResultPartial)
	mux.HandleFunc("/partials/chart", s.handleChartPartial)
	mux.HandleFunc("/api/cities", s.handleAPICities)
	mux.HandleFunc("/api/periods", s.handleAPIPeriods)
	mux.HandleFunc("/api/estimate", s.handleAPIEstimate)
	mux.HandleFunc("/api/series", s.handleAPISeries)
	mux.HandleFunc("/api/predict", s.handleAPIPredict)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("api: shutdown: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) available() bool {
	return s.loadErr == nil && s.sess != nil
}
