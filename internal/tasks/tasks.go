// package tasks implements the publish transaction against a [services.Publisher].
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeploy/internal/models"
	"github.com/desertthunder/playdeploy/internal/services"
	"github.com/desertthunder/playdeploy/internal/shared"
)

// State is the position of a publish run in the edit transaction.
type State int

const (
	StateIdle State = iota
	StateEditOpen
	StateApkUploaded
	StateTrackAssigned
	StateCommitted
	StateRollingBack
	StateDeleted
	StateRollbackFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditOpen:
		return "edit_open"
	case StateApkUploaded:
		return "apk_uploaded"
	case StateTrackAssigned:
		return "track_assigned"
	case StateCommitted:
		return "committed"
	case StateRollingBack:
		return "rolling_back"
	case StateDeleted:
		return "deleted"
	case StateRollbackFailed:
		return "rollback_failed"
	default:
		return ""
	}
}

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateDeleted || s == StateRollbackFailed
}

// StepError reports the step that failed a publish run.
//
// Error returns only the step's own message. A failed rollback is attached as Rollback and never replaces it.
type StepError struct {
	Step     Phase
	Message  string
	Rollback error // nil when no rollback was needed or the edit was deleted
}

func (e *StepError) Error() string {
	return e.Message
}

// Is matches [shared.ErrTransactionFailed].
func (e *StepError) Is(target error) bool {
	return target == shared.ErrTransactionFailed
}

// Unwrap exposes the rollback failure, which wraps [shared.ErrRollbackFailed].
func (e *StepError) Unwrap() error {
	return e.Rollback
}

// Diagnostic describes the failure, including the rollback outcome, for operator output.
func (e *StepError) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s step failed: %s", e.Step, e.Message)
	if e.Rollback != nil {
		fmt.Fprintf(&b, " (%v)", e.Rollback)
	}
	return b.String()
}

// PublishRequest is the immutable input of one publish run.
type PublishRequest struct {
	PackageName       string
	BinaryPath        string
	Track             string
	UserFraction      float64                  // (0,1]; zero means 1.0
	ReleaseStatus     string                   // optional; empty derives it from UserFraction
	MappingPath       string                   // optional deobfuscation file
	NativeSymbolsPath string                   // optional native debug symbols archive
	ExpansionFiles    []services.ExpansionFile // optional .obb files, APK only
	ReleaseNotes      map[string]string        // optional, language → text
	Validate          bool                     // validate the edit before commit

	// UntrackBlockingVersions clears lower tracks whose versions would shadow the new release.
	UntrackBlockingVersions bool
}

// WithDefaults returns a copy of r with defaults applied.
func (r PublishRequest) WithDefaults() PublishRequest {
	if r.UserFraction == 0 {
		r.UserFraction = 1.0
	}
	return r
}

// Check reports the first invalid field of r.
func (r PublishRequest) Check() error {
	switch {
	case strings.TrimSpace(r.PackageName) == "":
		return fmt.Errorf("%w: package name is required", shared.ErrInvalidInput)
	case strings.TrimSpace(r.BinaryPath) == "":
		return fmt.Errorf("%w: binary path is required", shared.ErrInvalidInput)
	case strings.TrimSpace(r.Track) == "":
		return fmt.Errorf("%w: track is required", shared.ErrInvalidInput)
	case r.UserFraction <= 0 || r.UserFraction > 1:
		return fmt.Errorf("%w: user fraction %v is outside (0, 1]", shared.ErrInvalidInput, r.UserFraction)
	case r.ReleaseStatus != "" && !slices.Contains(services.ReleaseStatuses, r.ReleaseStatus):
		return fmt.Errorf("%w: unknown release status %q, expected one of %s",
			shared.ErrInvalidInput, r.ReleaseStatus, strings.Join(services.ReleaseStatuses, ", "))
	case r.ReleaseStatus == services.ReleaseStatusInProgress && r.UserFraction == 1:
		return fmt.Errorf("%w: an inProgress release needs a user fraction below 1", shared.ErrInvalidInput)
	case r.ReleaseStatus != "" && r.UserFraction < 1 && !services.AppliesUserFraction(r.ReleaseStatus):
		return fmt.Errorf("%w: user fraction %v only applies to inProgress or halted releases, not %s",
			shared.ErrInvalidInput, r.UserFraction, r.ReleaseStatus)
	}
	return r.checkExpansionFiles()
}

func (r PublishRequest) checkExpansionFiles() error {
	if len(r.ExpansionFiles) == 0 {
		return nil
	}
	if shared.DetectBinaryKind(r.BinaryPath) != shared.BinaryAPK {
		return fmt.Errorf("%w: expansion files can only be attached to an .apk", shared.ErrInvalidInput)
	}

	seen := map[string]bool{}
	for _, f := range r.ExpansionFiles {
		if f.Kind != services.ExpansionMain && f.Kind != services.ExpansionPatch {
			return fmt.Errorf("%w: unknown expansion file kind %q", shared.ErrInvalidInput, f.Kind)
		}
		if seen[f.Kind] {
			return fmt.Errorf("%w: more than one %s expansion file", shared.ErrInvalidInput, f.Kind)
		}
		seen[f.Kind] = true
	}
	return nil
}

// untracks reports whether the run checks lower tracks for blocking versions.
func (r PublishRequest) untracks() bool {
	return r.UntrackBlockingVersions && len(blockingCandidates(r.Track)) > 0
}

// steps is the number of remote calls a successful run makes.
func (r PublishRequest) steps() int {
	n := 4 + len(r.ExpansionFiles)
	for _, optional := range []bool{r.MappingPath != "", r.NativeSymbolsPath != "", r.untracks(), r.Validate} {
		if optional {
			n++
		}
	}
	return n
}

// blockingCandidates returns the tracks whose releases can shadow a release on track.
func blockingCandidates(track string) []string {
	switch track {
	case "beta":
		return []string{"alpha"}
	case "production", "rollout":
		return []string{"alpha", "beta"}
	default:
		return nil
	}
}

// shadows reports whether a track holding existing would block users from receiving uploaded.
func shadows(existing, uploaded []int64) bool {
	if len(existing) == 0 {
		return false
	}
	if len(existing) != len(uploaded) {
		return true
	}

	a, b := slices.Clone(existing), slices.Clone(uploaded)
	slices.Sort(a)
	slices.Sort(b)
	for i := range a {
		if a[i] < b[i] {
			return true
		}
	}
	return false
}

// PublishResult describes what one run did.
type PublishResult struct {
	RunID       string
	Request     PublishRequest
	State       State
	Transitions []State // every state entered, in order, starting with StateIdle
	Edit        services.Edit
	VersionCode int64
	Untracked   []string // lower tracks cleared of blocking versions
	Err         *StepError
	StartedAt   time.Time
	CompletedAt time.Time
}

// Succeeded reports whether the edit was committed.
func (r *PublishResult) Succeeded() bool {
	return r.State == StateCommitted
}

func (r *PublishResult) transition(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// RunRecorder stores finished runs.
type RunRecorder interface {
	Record(run *models.PublishRun) error
}

// PublishEngine drives the publish transaction: open edit, upload binary, assign track, commit.
//
// Any failure after the edit was opened is compensated by deleting the edit exactly once.
type PublishEngine struct {
	publisher services.Publisher
	logger    *log.Logger
	recorder  RunRecorder
	now       func() time.Time
}

// NewPublishEngine creates a new PublishEngine. logger and recorder may be nil.
func NewPublishEngine(publisher services.Publisher, logger *log.Logger, recorder RunRecorder) *PublishEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PublishEngine{
		publisher: publisher,
		logger:    logger,
		recorder:  recorder,
		now:       time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PublishEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Publish runs one publish transaction to completion.
//
// Calls are made strictly in order and never retried. On success the returned error is nil and the result's
// state is [StateCommitted]. On failure the error is a [*StepError] and the result records how far the run got;
// a validation failure of req returns a nil result and makes no remote calls.
func (e *PublishEngine) Publish(ctx context.Context, req PublishRequest, progress chan<- ProgressUpdate) (*PublishResult, error) {
	if e.publisher == nil {
		return nil, fmt.Errorf("%w: publisher not initialized", shared.ErrServiceUnavailable)
	}

	req = req.WithDefaults()
	if err := req.Check(); err != nil {
		return nil, err
	}

	result := &PublishResult{
		RunID:     shared.GenerateID(),
		Request:   req,
		StartedAt: e.now(),
	}
	result.transition(StateIdle)

	logger := shared.WithLogger(e.logger, "run", result.RunID, "package", req.PackageName)
	defer e.record(logger, result)

	total := req.steps()
	step := 0
	next := func(phase Phase, msg string) {
		step++
		e.sendProgress(progress, stepUpdate(phase, step, total, msg))
	}

	next(PhaseOpen, fmt.Sprintf("Opening edit for %s...", req.PackageName))
	opened := e.publisher.OpenEdit(ctx, req.PackageName)
	if !opened.OK() {
		result.Err = &StepError{Step: PhaseOpen, Message: opened.Message()}
		logger.Error("failed to open edit", "err", result.Err.Message)
		e.finish(result, progress)
		return result, result.Err
	}
	result.Edit = opened.Value()
	result.transition(StateEditOpen)
	logger = shared.WithLogger(logger, "edit", result.Edit.ID)
	logger.Info("edit opened", "expires", result.Edit.ExpiresAt)

	next(PhaseUpload, fmt.Sprintf("Uploading %s...", req.BinaryPath))
	uploaded := e.publisher.UploadBinary(ctx, result.Edit.ID, req.PackageName, req.BinaryPath)
	if !uploaded.OK() {
		return e.rollback(ctx, logger, result, PhaseUpload, uploaded.Message(), progress)
	}
	result.VersionCode = uploaded.Value().VersionCode
	result.transition(StateApkUploaded)
	logger.Info("binary uploaded", "version_code", result.VersionCode, "sha256", uploaded.Value().SHA256)

	for _, file := range req.ExpansionFiles {
		next(PhaseExpansion, fmt.Sprintf("Uploading %s expansion file %s...", file.Kind, file.Path))
		attached := e.publisher.UploadExpansionFile(ctx, result.Edit.ID, req.PackageName, result.VersionCode, file)
		if !attached.OK() {
			return e.rollback(ctx, logger, result, PhaseExpansion, attached.Message(), progress)
		}
		logger.Info("expansion file uploaded", "kind", file.Kind, "path", file.Path)
	}

	if req.MappingPath != "" {
		next(PhaseMapping, fmt.Sprintf("Uploading mapping file for version %d...", result.VersionCode))
		mapped := e.publisher.UploadMapping(ctx, result.Edit.ID, req.PackageName, result.VersionCode, req.MappingPath)
		if !mapped.OK() {
			return e.rollback(ctx, logger, result, PhaseMapping, mapped.Message(), progress)
		}
		logger.Info("mapping file uploaded", "path", req.MappingPath)
	}

	if req.NativeSymbolsPath != "" {
		next(PhaseSymbols, fmt.Sprintf("Uploading native debug symbols for version %d...", result.VersionCode))
		symbols := e.publisher.UploadNativeSymbols(ctx, result.Edit.ID, req.PackageName, result.VersionCode, req.NativeSymbolsPath)
		if !symbols.OK() {
			return e.rollback(ctx, logger, result, PhaseSymbols, symbols.Message(), progress)
		}
		logger.Info("native debug symbols uploaded", "path", req.NativeSymbolsPath)
	}

	assignment := services.TrackAssignment{
		Track:        req.Track,
		Status:       req.ReleaseStatus,
		UserFraction: req.UserFraction,
		VersionCodes: []int64{result.VersionCode},
		ReleaseNotes: req.ReleaseNotes,
	}
	next(PhaseAssign, fmt.Sprintf("Assigning version %d to %s (%s)...", result.VersionCode, req.Track, assignment.ReleaseStatus()))
	assigned := e.publisher.AssignTrack(ctx, result.Edit.ID, req.PackageName, assignment)
	if !assigned.OK() {
		return e.rollback(ctx, logger, result, PhaseAssign, assigned.Message(), progress)
	}
	result.transition(StateTrackAssigned)
	logger.Info("track assigned", "track", req.Track, "status", assignment.ReleaseStatus(), "user_fraction", req.UserFraction)

	if req.UntrackBlockingVersions && !req.untracks() {
		logger.Warn("nothing to untrack below this track", "track", req.Track)
	}
	if req.untracks() {
		next(PhaseUntrack, "Deactivating blocking versions on lower tracks...")
		if message, ok := e.untrack(ctx, logger, result, assignment.VersionCodes); !ok {
			return e.rollback(ctx, logger, result, PhaseUntrack, message, progress)
		}
	}

	if req.Validate {
		next(PhaseValidate, "Validating edit...")
		validated := e.publisher.ValidateEdit(ctx, result.Edit.ID, req.PackageName)
		if !validated.OK() {
			return e.rollback(ctx, logger, result, PhaseValidate, validated.Message(), progress)
		}
	}

	next(PhaseCommit, "Committing edit...")
	committed := e.publisher.CommitEdit(ctx, result.Edit.ID, req.PackageName)
	if !committed.OK() {
		return e.rollback(ctx, logger, result, PhaseCommit, committed.Message(), progress)
	}
	result.Edit.Status = services.EditCommitted
	result.transition(StateCommitted)
	logger.Info("edit committed", "track", req.Track, "version_code", result.VersionCode)

	e.finish(result, progress)
	return result, nil
}

// untrack clears every lower track whose versions shadow uploaded. It returns the failure message on error.
func (e *PublishEngine) untrack(ctx context.Context, logger *log.Logger, result *PublishResult, uploaded []int64) (string, bool) {
	req := result.Request
	listed := e.publisher.ListTracks(ctx, result.Edit.ID, req.PackageName)
	if !listed.OK() {
		return listed.Message(), false
	}

	candidates := blockingCandidates(req.Track)
	for _, track := range listed.Value() {
		if !slices.Contains(candidates, track.Name) || !shadows(track.VersionCodes, uploaded) {
			continue
		}

		logger.Warn("removing blocking versions", "track", track.Name, "version_codes", track.VersionCodes)
		cleared := e.publisher.ClearTrack(ctx, result.Edit.ID, req.PackageName, track.Name)
		if !cleared.OK() {
			return cleared.Message(), false
		}
		result.Untracked = append(result.Untracked, track.Name)
	}

	if len(result.Untracked) == 0 {
		logger.Info("no blocking versions found")
	}
	return "", true
}

// rollback deletes the open edit after step failed with message.
//
// The delete runs even if ctx was cancelled so the package is not left with an orphaned edit.
func (e *PublishEngine) rollback(
	ctx context.Context,
	logger *log.Logger,
	result *PublishResult,
	step Phase,
	message string,
	progress chan<- ProgressUpdate,
) (*PublishResult, error) {
	result.Err = &StepError{Step: step, Message: message}
	logger.Error("publish step failed", "step", step, "err", message)

	result.transition(StateRollingBack)
	e.sendProgress(progress, rollbackUpdate(result.Edit.ID))

	deleted := e.publisher.DeleteEdit(context.WithoutCancel(ctx), result.Edit.ID, result.Request.PackageName)
	if deleted.OK() {
		result.Edit.Status = services.EditDeleted
		result.transition(StateDeleted)
		logger.Info("edit deleted")
	} else {
		result.Edit.Status = services.EditUnknown
		result.Err.Rollback = fmt.Errorf("%w: %s", shared.ErrRollbackFailed, deleted.Message())
		result.transition(StateRollbackFailed)
		logger.Warn("failed to delete edit; it may block the next run until it expires", "err", deleted.Message())
	}

	e.finish(result, progress)
	return result, result.Err
}

func (e *PublishEngine) finish(result *PublishResult, progress chan<- ProgressUpdate) {
	result.CompletedAt = e.now()
	e.sendProgress(progress, completeUpdate(*result))
}

// record writes the run to the audit log. Failures are logged and otherwise ignored.
func (e *PublishEngine) record(logger *log.Logger, result *PublishResult) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(RunFromResult(result)); err != nil {
		logger.Warn("failed to record run", "err", err)
	}
}

// RunFromResult converts a result into its audit log entry.
func RunFromResult(result *PublishResult) *models.PublishRun {
	req := result.Request
	run := models.NewPublishRun(req.PackageName, req.Track, req.BinaryPath, req.UserFraction, result.StartedAt)
	run.SetID(result.RunID)

	outcome := models.RunOutcome{
		EditID:      result.Edit.ID,
		VersionCode: result.VersionCode,
		State:       result.State.String(),
		CompletedAt: result.CompletedAt,
	}
	if result.Err != nil {
		outcome.FailedStep = result.Err.Step.String()
		outcome.Error = result.Err.Message
		if result.Err.Rollback != nil {
			outcome.RollbackError = result.Err.Rollback.Error()
		}
	}
	run.SetOutcome(outcome)
	return run
}

// IsRollbackFailure reports whether err carries a failed rollback.
func IsRollbackFailure(err error) bool {
	return errors.Is(err, shared.ErrRollbackFailed)
}
