package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playdeploy/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgPublishComplete
)

// publishOutcome is the payload of [MsgPublishComplete]
type publishOutcome struct {
	result *tasks.PublishResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// publishCompleteMsg is the constructor for [MsgPublishComplete]
func publishCompleteMsg(result *tasks.PublishResult, err error) Msg {
	return Msg{kind: MsgPublishComplete, data: publishOutcome{result: result, err: err}}
}
