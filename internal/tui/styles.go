package tui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle is used for the project name.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SceneStyle is used for the active scene name.
	SceneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")) // Pink

	// SelectedItemStyle is used for the highlighted hotspot and the active scene.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// LabelStyle is used for section labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")) // Dark gray

	// PanelStyle frames the panorama summary.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// NoticeStyle is used for non-fatal notices.
	NoticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")) // Yellow

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Dark gray
			MarginTop(1)
)
