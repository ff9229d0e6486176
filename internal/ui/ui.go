package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/playdeploy/internal/tasks"
)

// PublishFunc runs one publish transaction, reporting progress on the channel.
type PublishFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.PublishResult, error)

// ProgressModel shows a spinner and the completed steps while a publish run is in flight.
//
// Quitting during a run cancels its context; the engine still deletes the edit before the model exits.
type ProgressModel struct {
	ctx        context.Context
	cancel     context.CancelFunc
	publish    PublishFunc
	title      string
	spinner    spinner.Model
	progressCh chan tasks.ProgressUpdate
	doneCh     chan Msg
	current    tasks.ProgressUpdate
	completed  []string
	result     *tasks.PublishResult
	err        error
	done       bool
	cancelling bool
	help       help.Model
	keys       keyMap
}

// NewProgressModel creates a model that runs publish when started.
func NewProgressModel(ctx context.Context, title string, publish PublishFunc) *ProgressModel {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return &ProgressModel{
		ctx:     ctx,
		cancel:  cancel,
		publish: publish,
		title:   title,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the finished run; nil until the run completes.
func (m *ProgressModel) Result() (*tasks.PublishResult, error) {
	return m.result, m.err
}

// Done reports whether the run has finished.
func (m *ProgressModel) Done() bool {
	return m.done
}

// Init starts the run and the spinner.
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startPublish())
}

// Update handles incoming messages and updates the model state.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			if m.current.Message != "" && m.current.Phase != tasks.PhaseRollback {
				m.completed = append(m.completed, m.current.Message)
			}
			m.current = update
			return m, m.waitForProgress()

		case MsgPublishComplete:
			out := msg.data.(publishOutcome)
			m.result = out.result
			m.err = out.err
			m.done = true
			m.cancel()
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the progress or the final summary.
func (m *ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(styles.Title(m.title))
	b.WriteString("\n")

	if m.done {
		b.WriteString(RenderSummary(m.result, m.err))
		b.WriteString("\n")
		return b.String()
	}

	for _, line := range m.completed {
		b.WriteString(styles.OK("✓ "))
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.current.Message != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.current.Message))
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), styles.Muted("Starting...")))
	}

	if m.cancelling {
		b.WriteString(styles.Warn("Cancelling; the open edit will be deleted before exit."))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *ProgressModel) startPublish() tea.Cmd {
	m.progressCh = make(chan tasks.ProgressUpdate, 50)
	m.doneCh = make(chan Msg, 1)

	go func() {
		result, err := m.publish(m.ctx, m.progressCh)
		close(m.progressCh)
		m.doneCh <- publishCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *ProgressModel) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressCh
		if !ok {
			return <-m.doneCh
		}
		return progressUpdateMsg(update)
	}
}

// RenderSummary renders the outcome of a publish run for the console.
func RenderSummary(result *tasks.PublishResult, err error) string {
	var b strings.Builder

	if err == nil && result != nil && result.Succeeded() {
		b.WriteString(styles.OK("✓ Publish committed"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "  Package:  %s\n", result.Request.PackageName)
		fmt.Fprintf(&b, "  Track:    %s\n", result.Request.Track)
		fmt.Fprintf(&b, "  Version:  %d\n", result.VersionCode)
		if result.Request.UserFraction < 1 {
			fmt.Fprintf(&b, "  Rollout:  %.0f%%\n", result.Request.UserFraction*100)
		}
		if status := result.Request.ReleaseStatus; status != "" {
			fmt.Fprintf(&b, "  Status:   %s\n", status)
		}
		if len(result.Untracked) > 0 {
			fmt.Fprintf(&b, "  Untracked: %s\n", strings.Join(result.Untracked, ", "))
		}
		fmt.Fprintf(&b, "  Edit:     %s\n", result.Edit.ID)
		return b.String()
	}

	b.WriteString(styles.Err("✗ Publish failed"))
	b.WriteString("\n")

	var stepErr *tasks.StepError
	switch {
	case asStepError(err, &stepErr):
		fmt.Fprintf(&b, "  Step:     %s\n", stepErr.Step)
		fmt.Fprintf(&b, "  Error:    %s\n", stepErr.Message)
		if result != nil && result.Edit.ID != "" {
			fmt.Fprintf(&b, "  Edit:     %s (%s)\n", result.Edit.ID, result.State)
		}
		if stepErr.Rollback != nil {
			b.WriteString(styles.Warn(fmt.Sprintf("  Rollback: %v", stepErr.Rollback)))
			b.WriteString("\n")
		}
	case err != nil:
		fmt.Fprintf(&b, "  Error:    %v\n", err)
	default:
		b.WriteString("  No result available\n")
	}

	return b.String()
}
