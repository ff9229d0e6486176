// package services defines the [Publisher] interface for app-distribution platforms and implements it for Google Play
package services

import (
	"context"
	"fmt"
	"strings"
)

// Publisher is the remote-procedure surface of the Google Play edits API used by a publish run.
//
// Every call blocks until the server answers and reports its result as an [Outcome]; implementations never
// return errors or panic past this boundary.
type Publisher interface {
	// OpenEdit creates a new draft edit for packageName.
	OpenEdit(ctx context.Context, packageName string) Outcome[Edit]

	// UploadBinary uploads the APK or AAB at path into the edit and returns the version code assigned by the server.
	UploadBinary(ctx context.Context, editID, packageName, path string) Outcome[UploadResult]

	// UploadMapping attaches a ProGuard/R8 deobfuscation file to an uploaded version.
	UploadMapping(ctx context.Context, editID, packageName string, versionCode int64, path string) Outcome[Unit]

	// UploadNativeSymbols attaches a native debug-symbols archive to an uploaded version.
	UploadNativeSymbols(ctx context.Context, editID, packageName string, versionCode int64, path string) Outcome[Unit]

	// UploadExpansionFile attaches a main or patch .obb expansion file to an uploaded APK version.
	UploadExpansionFile(ctx context.Context, editID, packageName string, versionCode int64, file ExpansionFile) Outcome[Unit]

	// AssignTrack points a release track at the given version codes.
	AssignTrack(ctx context.Context, editID, packageName string, assignment TrackAssignment) Outcome[Unit]

	// ListTracks returns every track of the edit with the version codes of its releases.
	ListTracks(ctx context.Context, editID, packageName string) Outcome[[]TrackState]

	// ClearTrack removes all releases from a track inside the edit.
	ClearTrack(ctx context.Context, editID, packageName, track string) Outcome[Unit]

	// ValidateEdit asks the server to check the edit without committing it.
	ValidateEdit(ctx context.Context, editID, packageName string) Outcome[Unit]

	// CommitEdit publishes the edit. A committed edit cannot be deleted.
	CommitEdit(ctx context.Context, editID, packageName string) Outcome[Unit]

	// DeleteEdit discards an uncommitted edit.
	DeleteEdit(ctx context.Context, editID, packageName string) Outcome[Unit]

	// Name returns the name of the platform (e.g., "Google Play")
	Name() string
}

// EditStatus is the lifecycle state of a server-side draft edit.
type EditStatus int

const (
	EditUnknown EditStatus = iota
	EditOpen
	EditCommitted
	EditDeleted
)

func (s EditStatus) String() string {
	switch s {
	case EditOpen:
		return "open"
	case EditCommitted:
		return "committed"
	case EditDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Edit is a server-side draft transaction. Its ID scopes every later call of the same run.
type Edit struct {
	ID          string
	PackageName string
	Status      EditStatus
	ExpiresAt   string // expiryTimeSeconds as reported by the server
}

// UploadResult is the server's answer to a binary upload.
type UploadResult struct {
	VersionCode int64
	SHA256      string
	Edit        Edit
}

// Release statuses accepted by the tracks API.
const (
	ReleaseStatusCompleted  = "completed"
	ReleaseStatusInProgress = "inProgress"
	ReleaseStatusDraft      = "draft"
	ReleaseStatusHalted     = "halted"
)

// ReleaseStatuses lists the statuses a release can be written with.
var ReleaseStatuses = []string{ReleaseStatusCompleted, ReleaseStatusInProgress, ReleaseStatusDraft, ReleaseStatusHalted}

// AppliesUserFraction reports whether a release in status is served to a fraction of users.
func AppliesUserFraction(status string) bool {
	return status == ReleaseStatusInProgress || status == ReleaseStatusHalted
}

// TrackAssignment describes the release written to a track.
type TrackAssignment struct {
	Track        string
	Status       string            // explicit release status; empty derives it from UserFraction
	UserFraction float64           // in (0,1]; 1 means a full rollout
	VersionCodes []int64           // the version codes uploaded in this run
	ReleaseNotes map[string]string // language → text
}

// ReleaseStatus returns the explicit status, or the one implied by the user fraction.
func (a TrackAssignment) ReleaseStatus() string {
	if a.Status != "" {
		return a.Status
	}
	if a.UserFraction > 0 && a.UserFraction < 1 {
		return ReleaseStatusInProgress
	}
	return ReleaseStatusCompleted
}

// TrackState is a track as it currently stands in an edit.
type TrackState struct {
	Name         string
	VersionCodes []int64 // union of the version codes of every release on the track
}

// Expansion file kinds.
const (
	ExpansionMain  = "main"
	ExpansionPatch = "patch"
)

// ExpansionFile is an .obb file attached to an APK.
type ExpansionFile struct {
	Kind string // main or patch
	Path string
}

// ParseExpansionFile parses a "main:/path/to/file.obb" or "patch:/path/to/file.obb" entry.
func ParseExpansionFile(entry string) (ExpansionFile, error) {
	kind, path, ok := strings.Cut(strings.TrimSpace(entry), ":")
	kind, path = strings.TrimSpace(kind), strings.TrimSpace(path)
	if !ok || path == "" {
		return ExpansionFile{}, fmt.Errorf("malformed expansion file %q: expected main:<path> or patch:<path>", entry)
	}
	if kind != ExpansionMain && kind != ExpansionPatch {
		return ExpansionFile{}, fmt.Errorf("unknown expansion file kind %q: expected main or patch", kind)
	}
	return ExpansionFile{Kind: kind, Path: path}, nil
}

// Unit is the payload of calls that only succeed or fail.
type Unit struct{}

// Outcome is the discriminated result of one remote call: either a success carrying a value or a failure carrying
// the server's (or transport's) message.
type Outcome[T any] struct {
	value   T
	message string
	ok      bool
}

// Success wraps v as a successful [Outcome].
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, ok: true}
}

// Failure builds a failed [Outcome] with a formatted message.
func Failure[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{message: fmt.Sprintf(format, args...)}
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool { return o.ok }

// Value returns the success payload; it is the zero value for failures.
func (o Outcome[T]) Value() T { return o.value }

// Message returns the failure message; it is empty for successes.
func (o Outcome[T]) Message() string { return o.message }

func (o Outcome[T]) String() string {
	if o.ok {
		return fmt.Sprintf("success(%v)", o.value)
	}
	return fmt.Sprintf("failure(%s)", o.message)
}
