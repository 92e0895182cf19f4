package orchestrator

import (
	"slices"
	"time"

	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/google/uuid"
)

type Kind string

const (
	KindExtract           Kind = "extract"
	KindAssemble          Kind = "assemble"
	KindFolderToContainer Kind = "folder_to_container"
)

type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
	Failed    Status = "failed"
)

const maxJobHistory = 50

// Job is a snapshot of one conversion. Every transition stores a new copy.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Source     string    `json:"source"`
	Target     string    `json:"target,omitempty"`
	Generation uint64    `json:"generation,omitempty"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func (j Job) Terminal() bool {
	return j.Status == Completed || j.Status == Cancelled || j.Status == Failed
}

func (o *Orchestrator) begin(kind Kind, source, target string, token *cancel.Token) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		Target:    target,
		Status:    Pending,
		CreatedAt: time.Now(),
	}
	if token != nil {
		job.Generation = token.Generation()
	}
	o.prune()
	o.jobs.Store(job.ID, job)
	return job
}

func (o *Orchestrator) update(job *Job, change func(*Job)) *Job {
	next := *job
	change(&next)
	o.jobs.Store(next.ID, &next)
	return &next
}

func (o *Orchestrator) running(job *Job) *Job {
	next := o.update(job, func(j *Job) { j.Status = Running })
	o.logger(next).Info("job started")
	return next
}

// finish moves job into its terminal state according to err and returns err.
func (o *Orchestrator) finish(job *Job, err error) error {
	next := *job
	next.FinishedAt = time.Now()
	l := o.logger(&next)
	switch {
	case err == nil:
		next.Status = Completed
		o.completed.Inc()
		l.Infof("job completed in %v", next.FinishedAt.Sub(next.CreatedAt).Round(time.Millisecond))
	case services.IsCancelled(err):
		next.Status = Cancelled
		o.cancelled.Inc()
		l.Info("job cancelled")
	default:
		next.Status = Failed
		next.Error = err.Error()
		o.failed.Inc()
		l.Errorf("job failed: %v", err)
	}
	o.jobs.Store(next.ID, &next)
	return err
}

func (o *Orchestrator) prune() {
	if o.jobs.Size() < maxJobHistory {
		return
	}
	var oldest *Job
	o.jobs.Range(func(_ string, j *Job) bool {
		if j.Terminal() && (oldest == nil || j.CreatedAt.Before(oldest.CreatedAt)) {
			oldest = j
		}
		return true
	})
	if oldest != nil {
		o.jobs.Delete(oldest.ID)
	}
}

// Jobs returns recent jobs, newest first.
func (o *Orchestrator) Jobs() []Job {
	jobs := make([]Job, 0, o.jobs.Size())
	o.jobs.Range(func(_ string, j *Job) bool {
		jobs = append(jobs, *j)
		return true
	})
	slices.SortFunc(jobs, func(a, b Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return jobs
}

type Stats struct {
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Failed    int64 `json:"failed"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Completed: o.completed.Value(),
		Cancelled: o.cancelled.Value(),
		Failed:    o.failed.Value(),
	}
}
