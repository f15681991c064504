package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Worker is one periodic pass
type Worker interface {
	Run(ctx context.Context) error
}

// Scheduler runs the update and download workers on fixed ticks. Each worker
// is single threaded: a tick that fires while the previous pass is still
// running is skipped.
type Scheduler struct {
	cron          *cron.Cron
	update        Worker
	download      Worker
	updateEvery   time.Duration
	downloadEvery time.Duration
	logger        *logrus.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(update, download Worker, updateEvery, downloadEvery time.Duration, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		update:        update,
		download:      download,
		updateEvery:   updateEvery,
		downloadEvery: downloadEvery,
		logger:        logger,
		entries:       make(map[string]cron.EntryID),
	}
}

// Start registers both workers and starts ticking
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if err := s.Restart("update", s.update, s.updateEvery); err != nil {
		return err
	}
	if err := s.Restart("download", s.download, s.downloadEvery); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"update_every":   s.updateEvery,
		"download_every": s.downloadEvery,
	}).Info("Scheduler started")
	return nil
}

// Restart (re)registers a worker under name and runs a first pass right
// away. Any previous tick source for the same name is removed first, so a
// worker never runs on two schedules.
func (s *Scheduler) Restart(name string, worker Worker, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("invalid interval %s for %s worker", every, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.logger))).
		Then(cron.FuncJob(func() { s.run(name, worker) }))

	id := s.cron.Schedule(cron.Every(every), job)
	s.entries[name] = id

	go job.Run()
	return nil
}

// Entries returns the number of registered tick sources
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler and waits for running passes to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(name string, worker Worker) {
	if err := worker.Run(context.Background()); err != nil {
		s.logger.WithError(err).WithField("worker", name).Error("Worker pass failed")
	}
}
