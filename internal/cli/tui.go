package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// WorkbookListModel - Interactive workbook selection
// =============================================================================

// workbookEntry is one row of the picker.
type workbookEntry struct {
	Path     string
	Size     int64
	Modified time.Time
}

// WorkbookListModel is the bubbletea model for picking the workbooks to
// analyze. Space toggles a row, "a" toggles all and enter confirms.
type WorkbookListModel struct {
	Entries   []workbookEntry
	Cursor    int
	Chosen    map[int]bool
	Confirmed bool
	Height    int
	Offset    int
}

// NewWorkbookListModel creates a picker with every workbook selected.
func NewWorkbookListModel(paths []string) WorkbookListModel {
	m := WorkbookListModel{Chosen: make(map[int]bool, len(paths)), Height: 15}
	for i, p := range paths {
		e := workbookEntry{Path: p}
		if info, err := os.Stat(p); err == nil {
			e.Size, e.Modified = info.Size(), info.ModTime()
		}
		m.Entries = append(m.Entries, e)
		m.Chosen[i] = true
	}
	return m
}

func (m WorkbookListModel) Init() tea.Cmd {
	return nil
}

func (m WorkbookListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			m.Chosen[m.Cursor] = !m.Chosen[m.Cursor]
		case "a":
			all := len(m.Selected()) < len(m.Entries)
			for i := range m.Entries {
				m.Chosen[i] = all
			}
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

// Selected returns the chosen paths in list order.
func (m WorkbookListModel) Selected() []string {
	var paths []string
	for i, e := range m.Entries {
		if m.Chosen[i] {
			paths = append(paths, e.Path)
		}
	}
	return paths
}

func (m WorkbookListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Workbooks"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  ⏎ analyze  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Entries))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Chosen[i] {
			check = "[x]"
		}
		rows = append(rows, []string{cursor, check, filepath.Base(e.Path), formatSize(e.Size), formatRelativeTime(e.Modified), filepath.Dir(e.Path)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Workbook", "Size", "Modified", "Folder").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := m.Offset + row
			switch {
			case idx == m.Cursor:
				return listSelectedStyle
			case !m.Chosen[idx]:
				return listDimStyle
			case col >= 3:
				return lipgloss.NewStyle().Foreground(colorGray)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d of %d selected", len(m.Selected()), len(m.Entries))))
	return b.String()
}

// pickWorkbooks lets the user choose among paths. Quitting without
// confirming selects nothing.
func pickWorkbooks(paths []string) ([]string, error) {
	final, err := tea.NewProgram(NewWorkbookListModel(paths)).Run()
	if err != nil {
		return nil, fmt.Errorf("workbook picker: %w", err)
	}
	m := final.(WorkbookListModel)
	if !m.Confirmed {
		return nil, nil
	}
	return m.Selected(), nil
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
