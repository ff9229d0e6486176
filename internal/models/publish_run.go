package models

import (
	"errors"
	"time"
)

// RunOutcome is the terminal result of a publish attempt as stored in the audit log.
type RunOutcome struct {
	EditID        string
	VersionCode   int64
	State         string // final orchestrator state, e.g. "committed" or "deleted"
	FailedStep    string
	Error         string
	RollbackError string
	CompletedAt   time.Time
}

// PublishRun records one publish attempt.
//
// Runs are written once the attempt finishes and are never read back to resume a transaction.
type PublishRun struct {
	id           string
	sequence     int
	packageName  string
	track        string
	binaryPath   string
	userFraction float64
	outcome      RunOutcome
	startedAt    time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewPublishRun creates a run for the given request parameters.
func NewPublishRun(packageName, track, binaryPath string, userFraction float64, startedAt time.Time) *PublishRun {
	now := time.Now()
	return &PublishRun{
		packageName:  packageName,
		track:        track,
		binaryPath:   binaryPath,
		userFraction: userFraction,
		startedAt:    startedAt,
		createdAt:    now,
		updatedAt:    now,
	}
}

// RestorePublishRun rebuilds a run from stored columns.
func RestorePublishRun(
	id string,
	sequence int,
	packageName, track, binaryPath string,
	userFraction float64,
	outcome RunOutcome,
	startedAt, createdAt, updatedAt time.Time,
	deletedAt *time.Time,
) *PublishRun {
	return &PublishRun{
		id:           id,
		sequence:     sequence,
		packageName:  packageName,
		track:        track,
		binaryPath:   binaryPath,
		userFraction: userFraction,
		outcome:      outcome,
		startedAt:    startedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		deletedAt:    deletedAt,
	}
}

func (r *PublishRun) ID() string               { return r.id }
func (r *PublishRun) SetID(id string)          { r.id = id }
func (r *PublishRun) Sequence() int            { return r.sequence }
func (r *PublishRun) SetSequence(seq int)      { r.sequence = seq }
func (r *PublishRun) PackageName() string      { return r.packageName }
func (r *PublishRun) Track() string            { return r.track }
func (r *PublishRun) BinaryPath() string       { return r.binaryPath }
func (r *PublishRun) UserFraction() float64    { return r.userFraction }
func (r *PublishRun) Outcome() RunOutcome      { return r.outcome }
func (r *PublishRun) StartedAt() time.Time     { return r.startedAt }
func (r *PublishRun) CreatedAt() time.Time     { return r.createdAt }
func (r *PublishRun) UpdatedAt() time.Time     { return r.updatedAt }
func (r *PublishRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *PublishRun) DeletedAt() *time.Time    { return r.deletedAt }

// SetOutcome stores the terminal result of the run.
func (r *PublishRun) SetOutcome(o RunOutcome) {
	r.outcome = o
}

// Succeeded reports whether the run committed its edit.
func (r *PublishRun) Succeeded() bool {
	return r.outcome.State == "committed"
}

// Duration is the wall time between start and completion, or zero for unfinished runs.
func (r *PublishRun) Duration() time.Duration {
	if r.outcome.CompletedAt.IsZero() {
		return 0
	}
	return r.outcome.CompletedAt.Sub(r.startedAt)
}

// Validate checks the fields required to store a run.
func (r *PublishRun) Validate() error {
	if r.packageName == "" {
		return errors.New("package name is required")
	}
	if r.track == "" {
		return errors.New("track is required")
	}
	if r.userFraction <= 0 || r.userFraction > 1 {
		return errors.New("user fraction must be in (0, 1]")
	}
	return nil
}
