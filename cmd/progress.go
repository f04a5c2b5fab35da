package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// waitDoneMsg carries the result of the blocking call behind a waitModel.
type waitDoneMsg struct {
	err error
}

// waitModel shows a spinner and the elapsed time while a long cluster call
// runs. Input is disabled; interrupts reach the command's signal context.
type waitModel struct {
	label   string
	spinner spinner.Model
	work    func() error
	started time.Time
	elapsed time.Duration
	err     error
	done    bool
}

func newWaitModel(label string, work func() error) waitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return waitModel{
		label:   label,
		spinner: s,
		work:    work,
		started: time.Now(),
	}
}

func (m waitModel) Init() tea.Cmd {
	work := m.work
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return waitDoneMsg{err: work()}
	})
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case waitDoneMsg:
		m.done = true
		m.err = msg.err
		m.elapsed = time.Since(m.started)
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	elapsed := m.elapsed.Truncate(time.Second)
	if m.done {
		return fmt.Sprintf("  [%s] %s\n", passFail(m.err == nil), dimStyle.Render(fmt.Sprintf("%s (%s)", m.label, elapsed)))
	}
	return fmt.Sprintf("  %s %s %s\n", m.spinner.View(), m.label, dimStyle.Render(elapsed.String()))
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// waitWithSpinner runs work while showing a spinner on out. When out is not
// a terminal the label is printed once and work runs directly.
func waitWithSpinner(out io.Writer, label string, work func() error) error {
	if !isTerminal(out) {
		fmt.Fprintf(out, "  %s...\n", label)
		return work()
	}

	p := tea.NewProgram(newWaitModel(label, work),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress display: %w", err)
	}
	return final.(waitModel).err
}
