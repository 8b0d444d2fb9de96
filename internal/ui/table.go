package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/beamshare/internal/files"
)

// FileTable renders the files about to be sent.
type FileTable struct {
	items    []files.FileInfo
	showType bool
}

func NewFileTable(items []files.FileInfo) *FileTable {
	return &FileTable{items: items, showType: true}
}

func (t *FileTable) HideType() *FileTable {
	t.showType = false
	return t
}

func (t *FileTable) View() string {
	if len(t.items) == 0 {
		return MutedStyle.Render("No files")
	}

	headers := []string{"#", "Name", "Size"}
	if t.showType {
		headers = append(headers, "Type")
	}

	rows := make([][]string, 0, len(t.items))
	for i, item := range t.items {
		row := []string{fmt.Sprintf("%d", i+1), truncate(item.Name, 50), files.FormatSize(item.Size)}
		if t.showType {
			row = append(row, truncate(item.Type, 24))
		}
		rows = append(rows, row)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RoomBox shows the room code and the link a browser peer can open.
func RoomBox(roomID, link string) string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room Code:  %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomID),
		IconWeb, MutedStyle.Render(link),
	)
	return RoomBoxStyle.Render(content)
}
