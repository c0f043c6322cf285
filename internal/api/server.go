package api

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/lox/miniquoter/internal/imagegen"
	"github.com/lox/miniquoter/internal/quote"
	"github.com/lox/miniquoter/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	store  *store.Store
	quotes *quote.Service
	port   string
	tmpl   *template.Template
	charts *imagegen.Cache
}

func NewServer(store *store.Store, quotes *quote.Service, port string) *Server {
	return &Server{
		store:  store,
		quotes: quotes,
		port:   port,
		tmpl:   newTemplates(),
		charts: imagegen.NewCache(10 * time.Minute),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /quote", s.handleQuotePage)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/quote", s.handleAPIQuote)
	mux.HandleFunc("GET /api/locate", s.handleAPILocate)
	mux.HandleFunc("GET /api/quote.csv", s.handleQuoteCSV)
	mux.HandleFunc("GET /api/chart.png", s.handleChart)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
