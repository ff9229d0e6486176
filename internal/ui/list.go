package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playdeploy/internal/models"
	"github.com/desertthunder/playdeploy/internal/shared"
	"github.com/desertthunder/playdeploy/internal/tasks"
)

var (
	_ list.Item = runItem{}
)

// runItem wraps [models.PublishRun] to implement [list.Item].
type runItem struct {
	run *models.PublishRun
}

func (i runItem) FilterValue() string { return i.run.PackageName() }
func (i runItem) Title() string {
	mark := styles.OK("✓")
	if !i.run.Succeeded() {
		mark = styles.Err("✗")
	}
	return fmt.Sprintf("%s #%d %s → %s", mark, i.run.Sequence(), i.run.PackageName(), i.run.Track())
}
func (i runItem) Description() string {
	out := i.run.Outcome()
	desc := fmt.Sprintf("%s • %s", i.run.StartedAt().Format("2006-01-02 15:04"), out.State)
	if out.VersionCode != 0 {
		desc = fmt.Sprintf("%s • version %d", desc, out.VersionCode)
	}
	if out.Error != "" {
		desc = fmt.Sprintf("%s • %s", desc, out.Error)
	}
	return desc
}

// HistoryModel browses the publish audit log.
type HistoryModel struct {
	list     list.Model
	selected *models.PublishRun
	help     help.Model
	keys     keyMap
}

// NewHistoryModel creates a browser over runs, newest first.
func NewHistoryModel(runs []*models.PublishRun) *HistoryModel {
	items := make([]list.Item, len(runs))
	for i, run := range runs {
		items[i] = runItem{run: run}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("Publish history (%d runs)", len(runs))

	return &HistoryModel{
		list: l,
		help: help.New(),
		keys: newKeyMap(),
	}
}

func (m *HistoryModel) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case m.selected != nil && key.Matches(msg, m.keys.back):
			m.selected = nil
			return m, nil
		case m.selected == nil && key.Matches(msg, m.keys.enter):
			if item, ok := m.list.SelectedItem().(runItem); ok {
				m.selected = item.run
			}
			return m, nil
		}
	}

	if m.selected != nil {
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders either the list or the selected run.
func (m *HistoryModel) View() string {
	if m.selected == nil {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
		return fmt.Sprintf("%s\n\n%s", m.list.View(), helpView)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", RenderRun(m.selected), helpView)
}

// RenderRun renders the details of a stored run.
func RenderRun(run *models.PublishRun) string {
	out := run.Outcome()

	var b strings.Builder
	b.WriteString(styles.Title(fmt.Sprintf("Run #%d", run.Sequence())))
	b.WriteString("\n")
	fmt.Fprintf(&b, "ID:        %s\n", run.ID())
	fmt.Fprintf(&b, "Package:   %s\n", run.PackageName())
	fmt.Fprintf(&b, "Track:     %s\n", run.Track())
	fmt.Fprintf(&b, "Binary:    %s\n", run.BinaryPath())
	fmt.Fprintf(&b, "Fraction:  %v\n", run.UserFraction())
	fmt.Fprintf(&b, "Started:   %s\n", run.StartedAt().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Duration:  %s\n", shared.FormatDuration(run.Duration()))
	fmt.Fprintf(&b, "State:     %s\n", styles.State(out.State))
	if out.EditID != "" {
		fmt.Fprintf(&b, "Edit:      %s\n", out.EditID)
	}
	if out.VersionCode != 0 {
		fmt.Fprintf(&b, "Version:   %d\n", out.VersionCode)
	}
	if out.Error != "" {
		b.WriteString(styles.Err(fmt.Sprintf("Failed:    %s: %s", out.FailedStep, out.Error)))
		b.WriteString("\n")
	}
	if out.RollbackError != "" {
		b.WriteString(styles.Warn(fmt.Sprintf("Rollback:  %s", out.RollbackError)))
		b.WriteString("\n")
	}
	return b.String()
}

func asStepError(err error, target **tasks.StepError) bool {
	return err != nil && errors.As(err, target)
}
