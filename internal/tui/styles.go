package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kaneboard/kaneboard/internal/models"
)

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	activeColumnStyle = columnStyle.Copy().
				BorderForeground(primaryColor)

	cardStyle = lipgloss.NewStyle()

	selectedCardStyle = lipgloss.NewStyle().
				Background(primaryColor).
				Foreground(fgColor).
				Bold(true)

	overdueStyle = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	timerStyle   = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	messageStyle = lipgloss.NewStyle().Foreground(successColor)
)

var statusStyles = map[models.Status]lipgloss.Style{
	models.StatusBacklog:    lipgloss.NewStyle().Bold(true).Foreground(mutedColor),
	models.StatusTodo:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
	models.StatusInProgress: lipgloss.NewStyle().Bold(true).Foreground(warningColor),
	models.StatusDone:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	models.StatusTested:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
	models.StatusCompleted:  lipgloss.NewStyle().Bold(true).Foreground(successColor),
}

var statusLabels = map[models.Status]string{
	models.StatusBacklog:    "Backlog",
	models.StatusTodo:       "To do",
	models.StatusInProgress: "In progress",
	models.StatusDone:       "Done",
	models.StatusTested:     "Tested",
	models.StatusCompleted:  "Completed",
}
