package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/beamshare/internal/files"
	"github.com/BioHazard786/beamshare/internal/transfer"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func feed(m *TransferModel, msgs ...tea.Msg) *TransferModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(*TransferModel)
	}
	return m
}

func TestTransferModelTracksRows(t *testing.T) {
	m := feed(NewTransferModel(ModeSend),
		StatusMsg("Sending files"),
		AddFileMsg{Name: "a.txt", Size: 100},
		AddFileMsg{Name: "b.txt", Size: 50},
		ProgressMsg{Index: 0, Progress: transfer.Progress{Transferred: 50, Total: 100, Throughput: 1024}},
	)

	view := m.View()
	assert.Contains(t, view, "Sending")
	assert.Contains(t, view, "Sending files")
	assert.Contains(t, view, "a.txt")
	assert.Contains(t, view, "b.txt")
	assert.Contains(t, view, " 50.0%")
	assert.Contains(t, view, "1.00 KB/s")

	m = feed(m, FileDoneMsg{Index: 0}, FileFailedMsg{Index: 1, Err: errors.New("integrity fault")})
	view = m.View()
	assert.Contains(t, view, "100.0%")
	assert.Contains(t, view, "integrity fault")
}

func TestTransferModelIgnoresUnknownIndex(t *testing.T) {
	m := feed(NewTransferModel(ModeReceive),
		ProgressMsg{Index: 3, Progress: transfer.Progress{Transferred: 1, Total: 2}},
		FileDoneMsg{Index: -1},
	)
	assert.Empty(t, m.rows)
	assert.Contains(t, m.View(), "Receiving")
}

func TestTransferModelCancel(t *testing.T) {
	cancelled := false
	m := NewTransferModel(ModeSend).OnCancel(func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, cancelled)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestSummaryView(t *testing.T) {
	view := SummaryView("Receive Summary", TransferSummary{
		Status:   "Complete",
		Files:    2,
		Total:    2 * 1024 * 1024,
		Duration: 2 * time.Second,
		Location: "/tmp/out",
	})

	assert.Contains(t, view, "Receive Summary")
	assert.Contains(t, view, "Complete")
	assert.Contains(t, view, "2.00 MB")
	assert.Contains(t, view, "1.00 MB/s")
	assert.Contains(t, view, "/tmp/out")
}

func TestAverageSpeedZeroDuration(t *testing.T) {
	assert.Zero(t, TransferSummary{Total: 10}.AverageSpeed())
}

func TestFileTable(t *testing.T) {
	view := NewFileTable([]files.FileInfo{
		{Name: "report.pdf", Size: 2048, Type: "application/pdf"},
	}).View()
	assert.Contains(t, view, "report.pdf")
	assert.Contains(t, view, "2.00 KB")
	assert.Contains(t, view, "application/pdf")

	assert.NotContains(t, NewFileTable([]files.FileInfo{{Name: "x", Type: "text/plain"}}).HideType().View(), "text/plain")
	assert.Contains(t, NewFileTable(nil).View(), "No files")
}

func TestRoomBox(t *testing.T) {
	view := RoomBox("123456", "https://beamshare.app/r/123456")
	assert.Contains(t, view, "123456")
	assert.Contains(t, view, "https://beamshare.app/r/123456")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestSpinnerStopClearsLine(t *testing.T) {
	var buf syncBuffer
	sp := NewWaitingSpinner(&buf, "Waiting for peer")
	sp.Start()
	time.Sleep(20 * time.Millisecond)
	sp.Success("Peer joined")
	sp.Stop()

	out := buf.String()
	assert.Contains(t, out, "Waiting for peer")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"))
	assert.Contains(t, out, "Peer joined")
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	var buf syncBuffer
	NewConnectionSpinner(&buf, "x").Stop()
	assert.Equal(t, "\r\033[K", buf.String())
}

func TestPrintHelpersUseWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	prevOut, prevErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	t.Cleanup(func() { Stdout, Stderr = prevOut, prevErr })

	PrintError("boom")
	PrintSuccessf("saved %d", 2)
	assert.Contains(t, errOut.String(), "boom")
	assert.Contains(t, out.String(), "saved 2")
}
