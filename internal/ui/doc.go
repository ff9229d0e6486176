// Package ui implements the terminal views of playdeploy using bubbletea's Elm architecture and lipgloss styles.
//
//  1. [ProgressModel] : Runs a publish transaction and shows each step with a spinner until it commits or rolls back
//  2. [HistoryModel] : Browses the audit log of past runs with a filterable list and a detail view
//
// Progress updates flow through a channel from the PublishEngine, providing non-blocking status reporting.
// [RenderSummary] and [RenderRun] produce the same styled output for non-interactive use.
package ui
