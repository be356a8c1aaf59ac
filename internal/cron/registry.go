package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work. Name keys metrics and logs, so it must be
// unique within a registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered set of jobs a cron cycle walks through.
type Registry struct {
	jobs []Job
}

// NewRegistry keeps jobs in the order given. Nil jobs are skipped; blank or
// repeated names are rejected.
func NewRegistry(jobs ...Job) (*Registry, error) {
	seen := make(map[string]struct{}, len(jobs))
	r := &Registry{jobs: make([]Job, 0, len(jobs))}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		name := strings.TrimSpace(job.Name())
		if name == "" {
			return nil, fmt.Errorf("cron job %T has no name", job)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("cron job %q registered twice", name)
		}
		seen[name] = struct{}{}
		r.jobs = append(r.jobs, job)
	}
	return r, nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	if r == nil {
		return nil
	}
	return append([]Job(nil), r.jobs...)
}

// Names lists job names in run order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Jobs()))
	for _, job := range r.Jobs() {
		names = append(names, job.Name())
	}
	return names
}
