package cron

import "context"

// Job is one scheduled task executed by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. A name can only be registered once.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job. Nil jobs and repeated names are ignored.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, dup := r.names[job.Name()]; dup {
		return
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
