// Package sweeper reclaims expired entries from the session and rate-limit
// stores, either on a ticker or on demand.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moyoez/scangate/tool"
)

// Sweepable is anything that can drop its entries that expired at now.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type Job struct {
	Name     string
	Interval time.Duration
	Target   Sweepable
}

// Report is the outcome of one job run.
type Report struct {
	Name    string `json:"name"`
	Removed int    `json:"removed"`
	Error   string `json:"error,omitempty"`
}

type Runner struct {
	jobs []Job
	now  func() time.Time
	// mu serializes runs so a manual sweep never overlaps a ticker run of the same job
	mu sync.Mutex
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func NewRunner(jobs []Job, opts ...Option) (*Runner, error) {
	for _, job := range jobs {
		if job.Target == nil {
			return nil, fmt.Errorf("sweep job %q has no target", job.Name)
		}
		if job.Interval <= 0 {
			return nil, fmt.Errorf("sweep job %q interval must be > 0", job.Name)
		}
	}
	r := &Runner{jobs: jobs, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run starts one ticker per job and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	tool.DefaultLogger.Infof("[Sweep] %s sweeper started, running every %v", job.Name, job.Interval)
	for {
		select {
		case <-ctx.Done():
			tool.DefaultLogger.Debugf("[Sweep] %s sweeper stopping", job.Name)
			return
		case <-ticker.C:
			r.runJob(ctx, job)
		}
	}
}

// SweepNow runs every job once and returns the per-job reports.
// The returned error joins the errors of all failed jobs.
func (r *Runner) SweepNow(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(r.jobs))
	var errs []error
	for _, job := range r.jobs {
		report := r.runJob(ctx, job)
		if report.Error != "" {
			errs = append(errs, fmt.Errorf("%s: %s", job.Name, report.Error))
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (r *Runner) runJob(ctx context.Context, job Job) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := Report{Name: job.Name}
	removed, err := job.Target.Sweep(ctx, r.now())
	report.Removed = removed
	if err != nil {
		report.Error = err.Error()
		tool.DefaultLogger.Errorf("[Sweep] %s sweep failed: %v", job.Name, err)
		return report
	}
	if removed > 0 {
		tool.DefaultLogger.Infof("[Sweep] %s sweep removed %d entries", job.Name, removed)
	}
	return report
}
