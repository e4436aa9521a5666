package scheduler

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
	"github.com/txcoastal/station-data-aggregation/internal/store"
)

// Scheduler periodically refreshes the configured stations and saves the
// fetched tables. Stations are read one after another; the upstream query
// pages are small academic servers and do not take kindly to bursts.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *hydro.Service
	store     *store.MemoryStore
	stations  []string
	interval  time.Duration
	window    time.Duration
}

// New creates a new Scheduler. window is how far back each refresh reaches.
func New(stations []string, interval, window time.Duration, service *hydro.Service, st *store.MemoryStore) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		store:     st,
		stations:  stations,
		interval:  interval,
		window:    window,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.stations) == 0 {
		log.Println("scheduler: no stations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.refresh)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) refresh() {
	log.Println("scheduler: running station refresh job")

	end := time.Now().UTC()
	start := end.Add(-s.window)

	for _, station := range s.stations {
		id, err := hydro.ClassifyStation(strings.Split(station, ",")...)
		if err != nil {
			log.Printf("scheduler: skipping station %q: %v", station, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		table := s.service.Read(ctx, id, hydro.ReadOptions{Start: &start, End: &end})
		cancel()

		if table == nil {
			continue
		}
		s.store.SaveSnapshot(store.TableSnapshot{
			Station:   station,
			FetchedAt: time.Now().UTC(),
			Table:     table,
		})
	}

	log.Println("scheduler: completed station refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
