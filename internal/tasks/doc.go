// Package tasks runs the Google Play publish transaction with real-time progress reporting.
//
// # Publish Transaction
//
// The edits API has no client-side atomicity: a run opens a draft edit, stores a binary in it, points a track at
// the new version, and commits. [PublishEngine.Publish] drives those calls in order:
//
//  1. Open edit          Idle → EditOpen
//  2. Upload binary      EditOpen → ApkUploaded (APK or AAB; the server assigns the version code)
//  3. Upload mapping     optional, stays in ApkUploaded
//  4. Assign track       ApkUploaded → TrackAssigned (completed, or inProgress with a user fraction)
//  5. Validate edit      optional, stays in TrackAssigned
//  6. Commit             TrackAssigned → Committed
//
// A failure to open the edit ends the run with nothing to undo. Any later failure moves the run to RollingBack
// and deletes the edit exactly once, ending in Deleted or RollbackFailed. Either way the caller receives a
// [*StepError] carrying the failed step's own message; a failed delete is attached as a secondary diagnostic.
//
// Nothing is retried, and no state survives the process: every run opens its own edit and uses the version code
// returned by its own upload.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Audit Log
//
// The optional [RunRecorder] interface (repositories.PublishRunRepository) receives every finished run.
// Recording errors are logged and never change the run's outcome.
package tasks
