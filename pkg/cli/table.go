package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
}

// DefaultStyles are the styles of DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Table is a list of rows with headers.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table with rounded borders.
func (t Table) Render(s Styles) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		}).
		Headers(t.Headers...).
		Rows(t.Rows...).
		Render()
}
