package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/beamshare/internal/files"
	"github.com/BioHazard786/beamshare/internal/transfer"
)

type Mode int

const (
	ModeSend Mode = iota
	ModeReceive
)

// Messages accepted by TransferModel.
type (
	AddFileMsg struct {
		Name string
		Size int64
	}
	ProgressMsg struct {
		Index    int
		Progress transfer.Progress
	}
	FileDoneMsg struct {
		Index int
	}
	FileFailedMsg struct {
		Index int
		Err   error
	}
	StatusMsg string
)

type fileRow struct {
	name       string
	size       int64
	sent       int64
	throughput float64
	done       bool
	failed     bool
	errMsg     string
}

// TransferModel is the bubbletea model of the live transfer view.
type TransferModel struct {
	mode     Mode
	status   string
	rows     []*fileRow
	bars     []progress.Model
	spinner  spinner.Model
	width    int
	quitting bool
	onCancel func()
}

func NewTransferModel(mode Mode) *TransferModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &TransferModel{
		mode:    mode,
		status:  "Connecting...",
		spinner: s,
		width:   80,
	}
}

// OnCancel registers the callback run when the user presses q or ctrl+c.
func (m *TransferModel) OnCancel(fn func()) *TransferModel {
	m.onCancel = fn
	return m
}

func (m *TransferModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *TransferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onCancel != nil {
				m.onCancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		for i := range m.bars {
			m.bars[i].Width = barWidth(msg.Width)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StatusMsg:
		m.status = string(msg)

	case AddFileMsg:
		m.rows = append(m.rows, &fileRow{name: msg.Name, size: msg.Size})
		m.bars = append(m.bars, progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(barWidth(m.width)),
			progress.WithoutPercentage(),
		))

	case ProgressMsg:
		if row := m.row(msg.Index); row != nil {
			row.sent = msg.Progress.Transferred
			row.throughput = msg.Progress.Throughput
		}

	case FileDoneMsg:
		if row := m.row(msg.Index); row != nil {
			row.done = true
			row.sent = row.size
		}

	case FileFailedMsg:
		if row := m.row(msg.Index); row != nil {
			row.failed = true
			if msg.Err != nil {
				row.errMsg = msg.Err.Error()
			}
		}
	}
	return m, nil
}

func (m *TransferModel) row(i int) *fileRow {
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

func barWidth(termWidth int) int {
	return max(10, min(25, termWidth-60))
}

func (m *TransferModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	icon, title := IconSend, "Sending"
	if m.mode == ModeReceive {
		icon, title = IconReceive, "Receiving"
	}
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s Beamshare - %s", icon, title)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), m.status)

	for i, row := range m.rows {
		var mark string
		var nameStyle lipgloss.Style
		switch {
		case row.failed:
			mark, nameStyle = IconError, ErrorStyle
		case row.done:
			mark, nameStyle = IconSuccess, SuccessStyle
		case row.sent > 0:
			mark, nameStyle = IconFile, lipgloss.NewStyle()
		default:
			mark, nameStyle = "○", MutedStyle
		}

		fmt.Fprintf(&b, "  %s %s ", mark, nameStyle.Width(27).Render(truncate(row.name, 25)))

		fraction := 1.0
		if row.size > 0 {
			fraction = float64(row.sent) / float64(row.size)
		}
		b.WriteString(m.bars[i].ViewAs(fraction))
		fmt.Fprintf(&b, " %5.1f%%", fraction*100)

		switch {
		case row.failed:
			b.WriteString(ErrorStyle.Render(" " + row.errMsg))
		case !row.done && row.throughput > 0:
			b.WriteString(MutedStyle.Render(" " + files.FormatSpeed(row.throughput)))
			if remaining := row.size - row.sent; remaining > 0 {
				eta := time.Duration(float64(remaining) / row.throughput * float64(time.Second))
				b.WriteString(MutedStyle.Render(" ETA " + files.FormatDuration(eta)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to cancel") + "\n")
	return b.String()
}

// progressInterval bounds how often progress messages reach the program.
const progressInterval = 100 * time.Millisecond

// TransferUI runs a TransferModel in its own goroutine and exposes a
// goroutine-safe feed for transfer callbacks.
type TransferUI struct {
	program *tea.Program
	wg      sync.WaitGroup

	mu       sync.Mutex
	count    int
	lastSent time.Time
}

func NewTransferUI(model *TransferModel, out io.Writer, opts ...tea.ProgramOption) *TransferUI {
	opts = append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)
	return &TransferUI{program: tea.NewProgram(model, opts...)}
}

func (ui *TransferUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		if _, err := ui.program.Run(); err != nil {
			PrintErrorf("UI error: %v", err)
		}
	}()
}

// AddFile appends a row and returns its index.
func (ui *TransferUI) AddFile(name string, size int64) int {
	ui.mu.Lock()
	idx := ui.count
	ui.count++
	ui.lastSent = time.Time{}
	ui.mu.Unlock()

	ui.program.Send(AddFileMsg{Name: name, Size: size})
	return idx
}

// Progress forwards at most one update per progressInterval, except the
// final one.
func (ui *TransferUI) Progress(idx int, p transfer.Progress) {
	ui.mu.Lock()
	now := time.Now()
	if p.Transferred < p.Total && now.Sub(ui.lastSent) < progressInterval {
		ui.mu.Unlock()
		return
	}
	ui.lastSent = now
	ui.mu.Unlock()

	ui.program.Send(ProgressMsg{Index: idx, Progress: p})
}

func (ui *TransferUI) Done(idx int) {
	ui.program.Send(FileDoneMsg{Index: idx})
}

func (ui *TransferUI) Fail(idx int, err error) {
	ui.program.Send(FileFailedMsg{Index: idx, Err: err})
}

func (ui *TransferUI) Status(format string, args ...any) {
	ui.program.Send(StatusMsg(fmt.Sprintf(format, args...)))
}

// Stop quits the program and waits for it to restore the terminal.
func (ui *TransferUI) Stop() {
	ui.program.Quit()
	ui.wg.Wait()
}
