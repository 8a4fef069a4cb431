package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job is a task the cron worker runs under the cycle lock.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Spaced is implemented by jobs that should run less often than every cycle,
// such as retention sweeps.
type Spaced interface {
	Every() time.Duration
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs in registration order and remembers when this process
// last ran each one.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

// NewRegistry registers jobs in order. Nil, unnamed and duplicate jobs are
// rejected.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("nil cron job")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return errors.New("cron job name is required")
	}
	if r.byName == nil {
		r.byName = map[string]*entry{}
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q already registered", name)
	}
	e := &entry{job: job}
	if s, ok := job.(Spaced); ok {
		e.every = s.Every()
	}
	r.byName[name] = e
	r.entries = append(r.entries, e)
	return nil
}

// Jobs returns every registered job in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// Due returns the jobs to run in a cycle starting at now. Jobs without a
// spacing are always due; spaced jobs are due once their spacing has passed
// since the last recorded run.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, e := range r.entries {
		if e.every <= 0 || e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRan records an attempt of the named job, successful or not.
func (r *Registry) MarkRan(name string, at time.Time) {
	if e, ok := r.byName[name]; ok {
		e.lastRun = at
	}
}
