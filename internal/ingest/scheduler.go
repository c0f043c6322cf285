package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/lox/miniquoter/internal/metrics"
	"github.com/lox/miniquoter/internal/ratelimit"
	"github.com/lox/miniquoter/internal/store"
)

// Scheduler runs housekeeping: pruning expired rate-limit windows nightly and,
// when downloads are enabled, refreshing postal codes weekly.
type Scheduler struct {
	cron    *gocron.Scheduler
	limiter *ratelimit.Limiter
	store   *store.Store
	postal  PostalSource
}

func NewScheduler(limiter *ratelimit.Limiter, st *store.Store, postal PostalSource) *Scheduler {
	cron := gocron.NewScheduler(limiter.Location())
	cron.SingletonModeAll()
	return &Scheduler{
		cron:    cron,
		limiter: limiter,
		store:   st,
		postal:  postal,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At("00:05").Do(s.pruneRateLimits); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	if s.postal.Download && s.store != nil {
		if _, err := s.cron.Every(1).Sunday().At("03:00").Do(s.refreshPostalCodes); err != nil {
			return fmt.Errorf("schedule postal refresh: %w", err)
		}
	}
	s.cron.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	log.Println("scheduler: shutting down")
	s.cron.Stop()
}

func (s *Scheduler) pruneRateLimits() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.limiter.Prune(ctx)
	if err != nil {
		log.Printf("scheduler: prune rate limits: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: pruned %d rate limit windows", n)
	}
}

func (s *Scheduler) refreshPostalCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	places, err := NewGeoNamesClient(s.postal.URL).Fetch(ctx)
	if err != nil {
		log.Printf("scheduler: refresh postal codes: %v", err)
		return
	}
	if err := s.store.ReplacePostalCodes(places); err != nil {
		log.Printf("scheduler: store postal codes: %v", err)
		return
	}
	metrics.PostalCodesLoaded.Set(float64(len(places)))
	log.Printf("scheduler: refreshed %d postal codes", len(places))
}
