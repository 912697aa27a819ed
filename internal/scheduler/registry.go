// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// Manual trigger limits per job.
const (
	DefaultTriggerInterval = time.Second
	DefaultTriggerBurst    = 3
)

var (
	// ErrJobNotFound is returned for an unknown job name.
	ErrJobNotFound = errors.New("job not found")
	// ErrTriggerLimited is returned when manual triggers arrive too fast.
	ErrTriggerLimited = errors.New("trigger rate limit exceeded")
)

// Job is a named periodic task. Run returns a summary that is logged for
// scheduled runs and handed back to manual triggers.
type Job struct {
	Name        string
	Description string
	Schedule    string
	Run         func(ctx context.Context) (any, error)
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"last_run,omitzero"`
	NextRun     time.Time `json:"next_run,omitzero"`
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID
	limiter *rate.Limiter
}

// Add registers job on its cron schedule.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	entryID, err := s.cron.AddFunc(job.Schedule, func() { s.runScheduled(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	s.jobs[job.Name] = &registeredJob{
		job:     job,
		entryID: entryID,
		limiter: rate.NewLimiter(rate.Every(s.triggerInterval), s.triggerBurst),
	}
	s.logger.Debug("registered scheduled job", "name", job.Name, "schedule", job.Schedule)
	return nil
}

func (s *Scheduler) runScheduled(job Job) {
	start := time.Now()
	result, err := job.Run(s.ctx)
	if err != nil {
		s.logger.Error("scheduled job failed",
			"category", "system",
			"job", job.Name,
			"error", err)
		return
	}
	s.logger.Debug("scheduled job finished",
		"job", job.Name,
		"result", result,
		"duration", time.Since(start))
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		entry := s.cron.Entry(rj.entryID)
		result = append(result, JobInfo{
			Name:        rj.job.Name,
			Description: rj.job.Description,
			Schedule:    rj.job.Schedule,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// TriggerNow runs a job immediately and returns its result.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (any, error) {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !rj.limiter.Allow() {
		return nil, ErrTriggerLimited
	}

	s.logger.Info("manually triggering job", "name", name)
	return rj.job.Run(ctx)
}
