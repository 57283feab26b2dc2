package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type invokeEventMsg struct {
	event domain.Event
}

type invokeDoneMsg struct {
	err error
}

// invokeProgressModel shows pages fetched and elapsed time while an
// invocation runs.
type invokeProgressModel struct {
	spinner   spinner.Model
	stopwatch stopwatch.Model
	userID    string
	run       tea.Cmd

	pages   int
	failure domain.EventKind
	done    bool
	err     error
}

var progressDetailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

func newInvokeProgressModel(userID string, run tea.Cmd) invokeProgressModel {
	return invokeProgressModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		stopwatch: stopwatch.NewWithInterval(100 * time.Millisecond),
		userID:    userID,
		run:       run,
	}
}

func (m invokeProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.stopwatch.Init(), m.run)
}

func (m invokeProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case invokeEventMsg:
		switch msg.event.Kind {
		case domain.EventHTTPResponse:
			m.pages++
		case domain.EventBadStatus, domain.EventBadBody, domain.EventNetworkError, domain.EventDecryptionError:
			m.failure = msg.event.Kind
		}
		return m, nil
	case invokeDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		var cmd tea.Cmd
		m.stopwatch, cmd = m.stopwatch.Update(msg)
		return m, cmd
	}
}

func (m invokeProgressModel) View() string {
	if m.done {
		return ""
	}

	label := "fetching archived videos"
	if m.userID != "" {
		label += " for " + m.userID
	}
	details := []string{pluralPages(m.pages), m.stopwatch.Elapsed().Round(100 * time.Millisecond).String()}
	if m.failure != "" {
		details = append(details, string(m.failure))
	}
	return fmt.Sprintf("%s %s %s", m.spinner.View(), label, progressDetailStyle.Render("· "+strings.Join(details, " · ")))
}

func pluralPages(n int) string {
	if n == 1 {
		return "1 page"
	}
	return fmt.Sprintf("%d pages", n)
}

// runInvokeProgress runs the invocation under a progress line written to output.
func runInvokeProgress(ctx context.Context, output io.Writer, userID string, run func(context.Context, application.Progress) error) error {
	var p *tea.Program
	runCmd := func() tea.Msg {
		return invokeDoneMsg{err: run(ctx, func(event domain.Event) {
			p.Send(invokeEventMsg{event: event})
		})}
	}

	p = tea.NewProgram(
		newInvokeProgressModel(userID, runCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(invokeProgressModel)
	if !ok {
		return fmt.Errorf("unexpected final progress model type %T", finalModel)
	}

	return result.err
}
