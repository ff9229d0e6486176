package tasks

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/playdeploy/internal/models"
	"github.com/desertthunder/playdeploy/internal/services"
	"github.com/desertthunder/playdeploy/internal/shared"
	tu "github.com/desertthunder/playdeploy/internal/testing"
)

func betaRequest() PublishRequest {
	return PublishRequest{
		PackageName: "com.example.app",
		BinaryPath:  "app.apk",
		Track:       "beta",
	}
}

type recorder struct {
	runs []*models.PublishRun
	err  error
}

func (r *recorder) Record(run *models.PublishRun) error {
	r.runs = append(r.runs, run)
	return r.err
}

// ctxPublisher records whether the context passed to DeleteEdit was still live.
type ctxPublisher struct {
	*tu.MockPublisher
	deleteCtxErr error
}

func (p *ctxPublisher) DeleteEdit(ctx context.Context, editID, packageName string) services.Outcome[services.Unit] {
	p.deleteCtxErr = ctx.Err()
	return p.MockPublisher.DeleteEdit(ctx, editID, packageName)
}

func TestPublishEngine_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		engine := NewPublishEngine(pub, nil, nil)

		result, err := engine.Publish(ctx, betaRequest(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"OpenEdit", "UploadBinary", "AssignTrack", "CommitEdit"}
		if got := pub.Methods(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected calls %v, got %v", want, got)
		}
		if pub.Count("DeleteEdit") != 0 {
			t.Error("DeleteEdit must not be called on success")
		}

		if !result.Succeeded() || result.State != StateCommitted {
			t.Errorf("expected committed state, got %s", result.State)
		}
		if result.Edit.ID != "E1" || result.Edit.Status != services.EditCommitted {
			t.Errorf("unexpected edit %+v", result.Edit)
		}
		if result.VersionCode != 42 {
			t.Errorf("expected version code 42, got %d", result.VersionCode)
		}

		wantStates := []State{StateIdle, StateEditOpen, StateApkUploaded, StateTrackAssigned, StateCommitted}
		if !reflect.DeepEqual(result.Transitions, wantStates) {
			t.Errorf("expected transitions %v, got %v", wantStates, result.Transitions)
		}

		for _, c := range pub.Calls()[1:] {
			if c.EditID != "E1" || c.PackageName != "com.example.app" {
				t.Errorf("call %s used wrong edit or package", c)
			}
		}

		assign := pub.Calls()[2].Assignment
		if assign.Track != "beta" || assign.UserFraction != 1.0 {
			t.Errorf("unexpected assignment %+v", assign)
		}
		if assign.ReleaseStatus() != "completed" {
			t.Errorf("expected completed release, got %s", assign.ReleaseStatus())
		}
	})

	t.Run("optional steps run in order", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		req := betaRequest()
		req.MappingPath = "mapping.txt"
		req.Validate = true
		req.UserFraction = 0.25
		req.ReleaseNotes = map[string]string{"en-US": "Bug fixes"}

		result, err := NewPublishEngine(pub, nil, nil).Publish(ctx, req, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"OpenEdit", "UploadBinary", "UploadMapping", "AssignTrack", "ValidateEdit", "CommitEdit"}
		if got := pub.Methods(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected calls %v, got %v", want, got)
		}

		calls := pub.Calls()
		if calls[2].VersionCode != 42 || calls[2].Path != "mapping.txt" {
			t.Errorf("unexpected mapping call %+v", calls[2])
		}
		assign := calls[3].Assignment
		if assign.UserFraction != 0.25 || assign.ReleaseStatus() != "inProgress" {
			t.Errorf("unexpected staged assignment %+v", assign)
		}
		if assign.ReleaseNotes["en-US"] != "Bug fixes" {
			t.Errorf("expected release notes to be passed, got %v", assign.ReleaseNotes)
		}
		if !result.Succeeded() {
			t.Errorf("expected success, got %s", result.State)
		}
	})

	t.Run("every optional step runs in order", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		pub.Tracks = []services.TrackState{
			{Name: "alpha", VersionCodes: []int64{40}},
			{Name: "beta", VersionCodes: []int64{42}},
			{Name: "internal", VersionCodes: []int64{1}},
		}

		req := betaRequest()
		req.Track = "production"
		req.ExpansionFiles = []services.ExpansionFile{
			{Kind: services.ExpansionMain, Path: "main.obb"},
			{Kind: services.ExpansionPatch, Path: "patch.obb"},
		}
		req.MappingPath = "mapping.txt"
		req.NativeSymbolsPath = "symbols.zip"
		req.UntrackBlockingVersions = true
		req.Validate = true

		result, err := NewPublishEngine(pub, nil, nil).Publish(ctx, req, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			"OpenEdit", "UploadBinary", "UploadExpansionFile", "UploadExpansionFile", "UploadMapping",
			"UploadNativeSymbols", "AssignTrack", "ListTracks", "ClearTrack", "ValidateEdit", "CommitEdit",
		}
		if got := pub.Methods(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected calls %v, got %v", want, got)
		}

		calls := pub.Calls()
		if calls[2].Expansion != "main" || calls[3].Expansion != "patch" || calls[3].VersionCode != 42 {
			t.Errorf("unexpected expansion calls %+v %+v", calls[2], calls[3])
		}
		if calls[5].Path != "symbols.zip" || calls[5].VersionCode != 42 {
			t.Errorf("unexpected symbols call %+v", calls[5])
		}
		if calls[8].Track != "alpha" {
			t.Errorf("expected alpha to be cleared, got %s", calls[8].Track)
		}
		if !reflect.DeepEqual(result.Untracked, []string{"alpha"}) {
			t.Errorf("expected untracked [alpha], got %v", result.Untracked)
		}
	})

	t.Run("untrack is skipped without lower tracks", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		req := betaRequest()
		req.Track = "alpha"
		req.UntrackBlockingVersions = true

		if _, err := NewPublishEngine(pub, nil, nil).Publish(ctx, req, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pub.Count("ListTracks") != 0 {
			t.Errorf("expected no track listing, got %v", pub.Methods())
		}
	})

	t.Run("explicit release status is passed through", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		req := betaRequest()
		req.ReleaseStatus = services.ReleaseStatusHalted
		req.UserFraction = 0.3

		if _, err := NewPublishEngine(pub, nil, nil).Publish(ctx, req, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assign := pub.Calls()[2].Assignment
		if assign.ReleaseStatus() != "halted" || assign.UserFraction != 0.3 {
			t.Errorf("unexpected assignment %+v", assign)
		}
	})

	t.Run("version code comes from this run's upload", func(t *testing.T) {
		for _, vc := range []int64{1, 42, 2147483648} {
			pub := tu.NewMockPublisher("E1", vc)
			if _, err := NewPublishEngine(pub, nil, nil).Publish(ctx, betaRequest(), nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := pub.Calls()[2].Assignment.VersionCodes
			if !reflect.DeepEqual(got, []int64{vc}) {
				t.Errorf("expected version codes [%d], got %v", vc, got)
			}
		}
	})

	t.Run("open failure makes no further calls", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		pub.OpenErr = "The caller does not have permission"

		result, err := NewPublishEngine(pub, nil, nil).Publish(ctx, betaRequest(), nil)

		if got := pub.Methods(); !reflect.DeepEqual(got, []string{"OpenEdit"}) {
			t.Errorf("expected only OpenEdit, got %v", got)
		}

		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			t.Fatalf("expected *StepError, got %T", err)
		}
		if stepErr.Step != PhaseOpen || stepErr.Rollback != nil {
			t.Errorf("unexpected step error %+v", stepErr)
		}
		if err.Error() != "The caller does not have permission" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if !errors.Is(err, shared.ErrTransactionFailed) {
			t.Error("expected error to match ErrTransactionFailed")
		}
		if result.State != StateIdle || result.Edit.ID != "" {
			t.Errorf("expected no edit and idle state, got %s %+v", result.State, result.Edit)
		}
	})

	t.Run("post open failures roll back once", func(t *testing.T) {
		tests := []struct {
			name      string
			configure func(*tu.MockPublisher)
			step      Phase
			lastState State
			message   string
		}{
			{
				name:      "upload",
				configure: func(p *tu.MockPublisher) { p.UploadErr = "quota exceeded" },
				step:      PhaseUpload,
				lastState: StateEditOpen,
				message:   "quota exceeded",
			},
			{
				name:      "expansion file",
				configure: func(p *tu.MockPublisher) { p.ExpansionErr = "expansion files are not supported" },
				step:      PhaseExpansion,
				lastState: StateApkUploaded,
				message:   "expansion files are not supported",
			},
			{
				name:      "mapping",
				configure: func(p *tu.MockPublisher) { p.MappingErr = "mapping rejected" },
				step:      PhaseMapping,
				lastState: StateApkUploaded,
				message:   "mapping rejected",
			},
			{
				name:      "native symbols",
				configure: func(p *tu.MockPublisher) { p.SymbolsErr = "symbols archive is corrupt" },
				step:      PhaseSymbols,
				lastState: StateApkUploaded,
				message:   "symbols archive is corrupt",
			},
			{
				name:      "assign",
				configure: func(p *tu.MockPublisher) { p.AssignErr = "track not found" },
				step:      PhaseAssign,
				lastState: StateApkUploaded,
				message:   "track not found",
			},
			{
				name:      "list tracks",
				configure: func(p *tu.MockPublisher) { p.ListTracksErr = "backend unavailable" },
				step:      PhaseUntrack,
				lastState: StateTrackAssigned,
				message:   "backend unavailable",
			},
			{
				name: "clear track",
				configure: func(p *tu.MockPublisher) {
					p.Tracks = []services.TrackState{{Name: "beta", VersionCodes: []int64{41}}}
					p.ClearErr = "track is locked"
				},
				step:      PhaseUntrack,
				lastState: StateTrackAssigned,
				message:   "track is locked",
			},
			{
				name:      "validate",
				configure: func(p *tu.MockPublisher) { p.ValidateErr = "version code already used" },
				step:      PhaseValidate,
				lastState: StateTrackAssigned,
				message:   "version code already used",
			},
			{
				name:      "commit",
				configure: func(p *tu.MockPublisher) { p.CommitErr = "edit expired" },
				step:      PhaseCommit,
				lastState: StateTrackAssigned,
				message:   "edit expired",
			},
		}

		for _, tt := range tests {
			for _, deleteFails := range []bool{false, true} {
				name := tt.name
				if deleteFails {
					name += " with failed delete"
				}

				t.Run(name, func(t *testing.T) {
					pub := tu.NewMockPublisher("E1", 42)
					tt.configure(pub)
					if deleteFails {
						pub.DeleteErr = "backend error"
					}

					req := betaRequest()
					req.Track = "production"
					req.ExpansionFiles = []services.ExpansionFile{{Kind: services.ExpansionMain, Path: "main.obb"}}
					req.MappingPath = "mapping.txt"
					req.NativeSymbolsPath = "symbols.zip"
					req.UntrackBlockingVersions = true
					req.Validate = true

					result, err := NewPublishEngine(pub, nil, nil).Publish(ctx, req, nil)

					if pub.Count("DeleteEdit") != 1 {
						t.Fatalf("expected exactly one DeleteEdit, got calls %v", pub.Methods())
					}
					calls := pub.Calls()
					last := calls[len(calls)-1]
					if last.Method != "DeleteEdit" || last.EditID != "E1" || last.PackageName != "com.example.app" {
						t.Errorf("expected DeleteEdit(E1) as the final call, got %s", last)
					}
					if pub.Count("CommitEdit") > 0 && tt.step != PhaseCommit {
						t.Error("commit must not run after an earlier failure")
					}

					if err == nil {
						t.Fatal("expected error")
					}
					if err.Error() != tt.message {
						t.Errorf("expected primary message %q, got %q", tt.message, err.Error())
					}

					var stepErr *StepError
					if !errors.As(err, &stepErr) || stepErr.Step != tt.step {
						t.Fatalf("expected step %s, got %v", tt.step, err)
					}

					states := result.Transitions
					if len(states) < 3 || states[len(states)-3] != tt.lastState || states[len(states)-2] != StateRollingBack {
						t.Errorf("unexpected transitions %v", states)
					}

					if deleteFails {
						if result.State != StateRollbackFailed {
							t.Errorf("expected rollback_failed, got %s", result.State)
						}
						if !IsRollbackFailure(err) || !errors.Is(err, shared.ErrRollbackFailed) {
							t.Error("expected rollback failure to be attached")
						}
						if !strings.Contains(stepErr.Diagnostic(), "backend error") {
							t.Errorf("expected diagnostic to mention delete failure, got %q", stepErr.Diagnostic())
						}
						if strings.Contains(err.Error(), "backend error") {
							t.Error("delete failure must not appear in the primary message")
						}
					} else {
						if result.State != StateDeleted || result.Edit.Status != services.EditDeleted {
							t.Errorf("expected deleted state, got %s / %s", result.State, result.Edit.Status)
						}
						if IsRollbackFailure(err) {
							t.Error("unexpected rollback failure")
						}
					}
					if !errors.Is(err, shared.ErrTransactionFailed) {
						t.Error("expected error to match ErrTransactionFailed")
					}
				})
			}
		}
	})

	t.Run("quota exceeded scenario", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		pub.UploadErr = "quota exceeded"

		_, err := NewPublishEngine(pub, nil, nil).Publish(ctx, betaRequest(), nil)

		want := []string{"OpenEdit", "UploadBinary", "DeleteEdit"}
		if got := pub.Methods(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected calls %v, got %v", want, got)
		}
		if err == nil || err.Error() != "quota exceeded" {
			t.Errorf("expected quota exceeded, got %v", err)
		}
	})

	t.Run("rollback survives cancelled context", func(t *testing.T) {
		pub := &ctxPublisher{MockPublisher: tu.NewMockPublisher("E1", 42)}
		pub.UploadErr = "context canceled"

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		result, _ := NewPublishEngine(pub, nil, nil).Publish(cctx, betaRequest(), nil)
		if pub.deleteCtxErr != nil {
			t.Errorf("expected delete to run with a live context, got %v", pub.deleteCtxErr)
		}
		if result.State != StateDeleted {
			t.Errorf("expected deleted state, got %s", result.State)
		}
	})

	t.Run("each run opens its own edit", func(t *testing.T) {
		pub := tu.NewMockPublisher("E1", 42)
		engine := NewPublishEngine(pub, nil, nil)

		first, err := engine.Publish(ctx, betaRequest(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pub.EditID = "E2"
		second, err := engine.Publish(ctx, betaRequest(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if pub.Count("OpenEdit") != 2 {
			t.Errorf("expected two OpenEdit calls, got %d", pub.Count("OpenEdit"))
		}
		if second.Edit.ID != "E2" || first.RunID == second.RunID {
			t.Errorf("expected independent runs, got %s/%s", first.Edit.ID, second.Edit.ID)
		}
	})

	t.Run("invalid request makes no calls", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*PublishRequest)
		}{
			{"missing package", func(r *PublishRequest) { r.PackageName = "" }},
			{"missing binary", func(r *PublishRequest) { r.BinaryPath = " " }},
			{"missing track", func(r *PublishRequest) { r.Track = "" }},
			{"negative fraction", func(r *PublishRequest) { r.UserFraction = -0.5 }},
			{"fraction above one", func(r *PublishRequest) { r.UserFraction = 1.01 }},
			{"unknown release status", func(r *PublishRequest) { r.ReleaseStatus = "paused" }},
			{"full inProgress release", func(r *PublishRequest) { r.ReleaseStatus = services.ReleaseStatusInProgress }},
			{"staged draft", func(r *PublishRequest) { r.ReleaseStatus, r.UserFraction = services.ReleaseStatusDraft, 0.5 }},
			{"expansion file on a bundle", func(r *PublishRequest) {
				r.BinaryPath = "app.aab"
				r.ExpansionFiles = []services.ExpansionFile{{Kind: services.ExpansionMain, Path: "main.obb"}}
			}},
			{"duplicate expansion kind", func(r *PublishRequest) {
				r.ExpansionFiles = []services.ExpansionFile{{Kind: "main", Path: "a.obb"}, {Kind: "main", Path: "b.obb"}}
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				pub := tu.NewMockPublisher("E1", 42)
				req := betaRequest()
				tt.mutate(&req)

				result, err := NewPublishEngine(pub, nil, nil).Publish(ctx, req, nil)
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				if result != nil || len(pub.Calls()) != 0 {
					t.Errorf("expected no result and no calls, got %v", pub.Methods())
				}
			})
		}
	})

	t.Run("nil publisher", func(t *testing.T) {
		_, err := NewPublishEngine(nil, nil, nil).Publish(ctx, betaRequest(), nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPublishEngine_Progress(t *testing.T) {
	ctx := context.Background()

	t.Run("reports every step", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 20)
		req := betaRequest()
		req.Validate = true

		if _, err := NewPublishEngine(tu.NewMockPublisher("E1", 42), nil, nil).Publish(ctx, req, progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		var phases []Phase
		var last ProgressUpdate
		for u := range progress {
			phases = append(phases, u.Phase)
			last = u
		}

		want := []Phase{PhaseOpen, PhaseUpload, PhaseAssign, PhaseValidate, PhaseCommit, PhaseComplete}
		if !reflect.DeepEqual(phases, want) {
			t.Errorf("expected phases %v, got %v", want, phases)
		}

		result, ok := last.Data.(PublishResult)
		if !ok || !result.Succeeded() {
			t.Errorf("expected final update to carry the result, got %T", last.Data)
		}
		if !strings.Contains(last.Message, "42") {
			t.Errorf("expected version code in final message, got %q", last.Message)
		}
	})

	t.Run("reports rollback", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 20)
		pub := tu.NewMockPublisher("E1", 42)
		pub.CommitErr = "edit expired"

		NewPublishEngine(pub, nil, nil).Publish(ctx, betaRequest(), progress)
		close(progress)

		var sawRollback bool
		var last ProgressUpdate
		for u := range progress {
			if u.Phase == PhaseRollback {
				sawRollback = true
			}
			last = u
		}
		if !sawRollback {
			t.Error("expected a rollback update")
		}
		if last.Phase != PhaseComplete || !strings.Contains(last.Message, "edit expired") {
			t.Errorf("unexpected final update %+v", last)
		}
	})

	t.Run("never blocks on a full channel", func(t *testing.T) {
		progress := make(chan ProgressUpdate)

		result, err := NewPublishEngine(tu.NewMockPublisher("E1", 42), nil, nil).Publish(ctx, betaRequest(), progress)
		if err != nil || !result.Succeeded() {
			t.Errorf("expected success without a reader, got %v", err)
		}
	})
}

func TestPublishEngine_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("records failed run", func(t *testing.T) {
		rec := &recorder{}
		pub := tu.NewMockPublisher("E1", 42)
		pub.AssignErr = "track not found"
		pub.DeleteErr = "backend error"

		result, _ := NewPublishEngine(pub, nil, rec).Publish(ctx, betaRequest(), nil)

		if len(rec.runs) != 1 {
			t.Fatalf("expected one recorded run, got %d", len(rec.runs))
		}
		run := rec.runs[0]
		out := run.Outcome()

		if run.ID() != result.RunID {
			t.Errorf("expected run id %s, got %s", result.RunID, run.ID())
		}
		if out.EditID != "E1" || out.VersionCode != 42 || out.State != "rollback_failed" {
			t.Errorf("unexpected outcome %+v", out)
		}
		if out.FailedStep != "assign" || out.Error != "track not found" {
			t.Errorf("unexpected failure details %+v", out)
		}
		if !strings.Contains(out.RollbackError, "backend error") {
			t.Errorf("expected rollback error to be recorded, got %q", out.RollbackError)
		}
		if out.CompletedAt.IsZero() {
			t.Error("expected completion time")
		}
	})

	t.Run("recorder failure does not change outcome", func(t *testing.T) {
		rec := &recorder{err: errors.New("disk full")}

		result, err := NewPublishEngine(tu.NewMockPublisher("E1", 42), nil, rec).Publish(ctx, betaRequest(), nil)
		if err != nil || !result.Succeeded() {
			t.Errorf("expected success despite recorder failure, got %v", err)
		}
	})
}

func TestStateAndPhase(t *testing.T) {
	terminal := map[State]bool{
		StateIdle:           false,
		StateEditOpen:       false,
		StateApkUploaded:    false,
		StateTrackAssigned:  false,
		StateCommitted:      true,
		StateRollingBack:    false,
		StateDeleted:        true,
		StateRollbackFailed: true,
	}
	for s, want := range terminal {
		if s.String() == "" {
			t.Errorf("state %d has no name", s)
		}
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}

	for p := PhaseOpen; p <= PhaseComplete; p++ {
		if p.String() == "" {
			t.Errorf("phase %d has no name", p)
		}
	}
	if Phase(99).String() != "" || State(99).String() != "" {
		t.Error("expected unknown values to have empty names")
	}
}

func TestShadows(t *testing.T) {
	tests := []struct {
		name     string
		existing []int64
		uploaded []int64
		want     bool
	}{
		{"empty track", nil, []int64{42}, false},
		{"lower version", []int64{41}, []int64{42}, true},
		{"same version", []int64{42}, []int64{42}, false},
		{"higher version", []int64{43}, []int64{42}, false},
		{"count mismatch", []int64{43, 44}, []int64{42}, true},
		{"unsorted", []int64{50, 10}, []int64{11, 50}, true},
	}
	for _, tt := range tests {
		if got := shadows(tt.existing, tt.uploaded); got != tt.want {
			t.Errorf("%s: shadows(%v, %v) = %v, want %v", tt.name, tt.existing, tt.uploaded, got, tt.want)
		}
	}
}

func TestPublishRequest_Steps(t *testing.T) {
	req := betaRequest()
	if got := req.steps(); got != 4 {
		t.Errorf("expected 4 steps, got %d", got)
	}

	req.Track = "production"
	req.ExpansionFiles = []services.ExpansionFile{{Kind: "main"}, {Kind: "patch"}}
	req.MappingPath = "mapping.txt"
	req.NativeSymbolsPath = "symbols.zip"
	req.UntrackBlockingVersions = true
	req.Validate = true
	if got := req.steps(); got != 10 {
		t.Errorf("expected 10 steps, got %d", got)
	}

	req.Track = "internal"
	if got := req.steps(); got != 9 {
		t.Errorf("expected untrack to be skipped on internal, got %d steps", got)
	}
}

func TestPublishRequest_WithDefaults(t *testing.T) {
	req := betaRequest().WithDefaults()
	if req.UserFraction != 1.0 {
		t.Errorf("expected default fraction 1.0, got %v", req.UserFraction)
	}

	staged := betaRequest()
	staged.UserFraction = 0.1
	if staged.WithDefaults().UserFraction != 0.1 {
		t.Error("expected explicit fraction to be kept")
	}
}
