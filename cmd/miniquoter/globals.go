package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lox/miniquoter/internal/ingest"
	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/narrative"
	"github.com/lox/miniquoter/internal/quote"
	"github.com/lox/miniquoter/internal/ratelimit"
	"github.com/lox/miniquoter/internal/store"
)

// Globals are flags shared by every command.
type Globals struct {
	DB string `name:"db" env:"MINIQUOTER_DB" default:":memory:" help:"SQLite database path."`

	OpenAIAPIKey string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"API key for narrative generation."`
	OpenAIModel  string `name:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" help:"Chat model for narrative generation."`

	DailyLimit int    `name:"daily-limit" env:"MINIQUOTER_DAILY_LIMIT" default:"3" help:"Narrative requests per identity per day."`
	Timezone   string `env:"MINIQUOTER_TIMEZONE" default:"America/Chicago" help:"Zone whose midnight resets the daily limit."`
	RedisURL   string `name:"redis-url" env:"REDIS_URL" help:"Keep rate-limit counters in redis instead of SQLite."`

	StationsFile string `name:"stations-file" env:"MINIQUOTER_STATIONS_FILE" help:"Station degree-day CSV to use instead of the embedded table."`
	StationsFTP  string `name:"stations-ftp" env:"MINIQUOTER_STATIONS_FTP" help:"Anonymous FTP location of the station CSV."`

	PostalFile     string `name:"postal-file" env:"MINIQUOTER_POSTAL_FILE" help:"GeoNames postal code dump (US.txt)."`
	PostalDownload bool   `name:"postal-download" env:"MINIQUOTER_POSTAL_DOWNLOAD" help:"Download GeoNames postal codes at startup and weekly."`
	PostalURL      string `name:"postal-url" env:"MINIQUOTER_POSTAL_URL" help:"GeoNames archive URL override."`
}

func (g *Globals) postalSource() ingest.PostalSource {
	return ingest.PostalSource{File: g.PostalFile, Download: g.PostalDownload, URL: g.PostalURL}
}

type app struct {
	db      *sql.DB
	store   *store.Store
	limiter *ratelimit.Limiter
	quotes  *quote.Service
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

// setup opens the database, loads reference data and wires the quote service.
func (g *Globals) setup(ctx context.Context) (*app, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", g.Timezone, err)
	}

	db, err := store.Open(g.DB)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, closers: []func() error{db.Close}}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.store = st

	if err := ingest.SeedPostalCodes(ctx, st, g.postalSource()); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed postal codes: %w", err)
	}

	stations, err := ingest.LoadStations(ctx, g.StationsFile, g.StationsFTP)
	if err != nil {
		a.Close()
		return nil, err
	}

	var counter ratelimit.Counter = st
	if g.RedisURL != "" {
		rc, err := ratelimit.NewRedisCounter(ctx, g.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		counter = rc
		log.Println("rate limits stored in redis")
	}
	a.limiter = ratelimit.New(counter, g.DailyLimit, loc)

	var gen narrative.Generator
	if openai, err := narrative.NewOpenAIGenerator(g.OpenAIAPIKey, g.OpenAIModel); err != nil {
		log.Printf("narrative generation disabled: %v", err)
	} else {
		log.Printf("narrative generation using %s", openai.Model())
		gen = openai
	}

	a.quotes = quote.NewService(locator.New(st, stations), a.limiter, narrative.NewFormatter(gen))
	return a, nil
}
