// Package tui provides the interactive kanban board for Kaneboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

const (
	refreshInterval = 5 * time.Second
	requestTimeout  = 5 * time.Second
	minColumnWidth  = 16
)

type projectsLoadedMsg struct{ projects []models.Project }

type boardLoadedMsg struct {
	board *tracker.Board
	timer *tracker.RunningTimer
}

type actionDoneMsg struct{ message string }

type errMsg struct{ err error }

type tickMsg time.Time

// App is the board TUI model.
type App struct {
	client  *Client
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	projects   []models.Project
	projectIdx int
	projectID  string
	board      *tracker.Board
	timer      *tracker.RunningTimer

	col, row int
	width    int
	height   int
	loading  bool
	message  string
	failed   bool
}

// New creates a board for userID against the API at apiAddr. projectID
// selects the initial project; empty means the first one.
func New(apiAddr, userID, projectID string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return &App{
		client:    NewClient(apiAddr, userID),
		keys:      defaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		projectID: projectID,
		loading:   true,
		width:     120,
		height:    30,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetchProjects(), tick())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width

	case projectsLoadedMsg:
		a.projects = msg.projects
		if len(a.projects) == 0 {
			a.loading = false
			a.setMessage("No projects yet. Create one with: kaneboard project create", false)
			return a, nil
		}
		a.projectIdx = 0
		for i, p := range a.projects {
			if p.ID == a.projectID {
				a.projectIdx = i
			}
		}
		a.projectID = a.projects[a.projectIdx].ID
		return a, a.fetchBoard()

	case boardLoadedMsg:
		a.loading = false
		a.board = msg.board
		a.timer = msg.timer
		a.clamp()

	case actionDoneMsg:
		a.setMessage(msg.message, false)
		return a, a.fetchBoard()

	case errMsg:
		a.loading = false
		a.setMessage("Error: "+msg.err.Error(), true)

	case tickMsg:
		cmds := []tea.Cmd{tick()}
		if a.projectID != "" && !a.loading {
			cmds = append(cmds, a.fetchBoard())
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll

	case key.Matches(msg, a.keys.Up):
		if a.row > 0 {
			a.row--
		}

	case key.Matches(msg, a.keys.Down):
		a.row++
		a.clamp()

	case key.Matches(msg, a.keys.Left):
		if a.col > 0 {
			a.col--
			a.clamp()
		}

	case key.Matches(msg, a.keys.Right):
		if a.col < len(models.Statuses)-1 {
			a.col++
			a.clamp()
		}

	case key.Matches(msg, a.keys.Project):
		if len(a.projects) > 1 {
			a.projectIdx = (a.projectIdx + 1) % len(a.projects)
			a.projectID = a.projects[a.projectIdx].ID
			a.col, a.row = 0, 0
			a.loading = true
			return a, a.fetchBoard()
		}

	case key.Matches(msg, a.keys.Refresh):
		if a.projectID != "" {
			a.loading = true
			return a, a.fetchBoard()
		}

	case key.Matches(msg, a.keys.Start):
		return a, a.timerAction("start")

	case key.Matches(msg, a.keys.Pause):
		return a, a.timerAction("pause")

	case key.Matches(msg, a.keys.Stop):
		return a, a.timerAction("stop")

	case key.Matches(msg, a.keys.Forward):
		return a, a.move(1)

	case key.Matches(msg, a.keys.Back):
		return a, a.move(-1)
	}
	return a, nil
}

// clamp keeps the cursor inside the current column.
func (a *App) clamp() {
	n := len(a.column())
	if a.row >= n {
		a.row = n - 1
	}
	if a.row < 0 {
		a.row = 0
	}
}

func (a *App) column() []tracker.BoardTicket {
	if a.board == nil || a.col >= len(a.board.Columns) {
		return nil
	}
	return a.board.Columns[a.col].Tickets
}

func (a *App) selected() *tracker.BoardTicket {
	tickets := a.column()
	if a.row < 0 || a.row >= len(tickets) {
		return nil
	}
	return &tickets[a.row]
}

func (a *App) setMessage(msg string, failed bool) {
	a.message = msg
	a.failed = failed
}

// moveTarget returns the status delta columns away from s.
func moveTarget(s models.Status, delta int) (models.Status, bool) {
	i := s.Index() + delta
	if s.Index() < 0 || i < 0 || i >= len(models.Statuses) {
		return "", false
	}
	return models.Statuses[i], true
}

// --- Commands ---

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) fetchProjects() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		projects, err := client.ListProjects(ctx)
		if err != nil {
			return errMsg{err}
		}
		return projectsLoadedMsg{projects}
	}
}

func (a *App) fetchBoard() tea.Cmd {
	client, projectID := a.client, a.projectID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		board, err := client.Board(ctx, projectID)
		if err != nil {
			return errMsg{err}
		}
		timer, err := client.CurrentTimer(ctx)
		if err != nil {
			return errMsg{err}
		}
		return boardLoadedMsg{board: board, timer: timer}
	}
}

func (a *App) timerAction(action string) tea.Cmd {
	t := a.selected()
	if t == nil {
		return nil
	}
	client, ticketID := a.client, t.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		msg, err := client.Timer(ctx, ticketID, action)
		if err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{msg}
	}
}

func (a *App) move(delta int) tea.Cmd {
	t := a.selected()
	if t == nil {
		return nil
	}
	to, ok := moveTarget(t.Status, delta)
	if !ok {
		return nil
	}
	client, ticketID, title := a.client, t.ID, t.Title
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := client.MoveTicket(ctx, ticketID, to)
		if err != nil {
			return errMsg{err}
		}
		msg := fmt.Sprintf("Moved %q to %s", title, statusLabels[to])
		if n := len(res.StoppedTimers); n > 0 {
			msg += fmt.Sprintf(" (stopped %d timer%s)", n, plural(n))
		}
		return actionDoneMsg{msg}
	}
}

// --- View ---

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("KANEBOARD")
	if a.board != nil && a.board.Project != nil {
		header += " " + lipgloss.NewStyle().Bold(true).Render(a.board.Project.Name)
	}
	if a.loading {
		header += " " + a.spinner.View()
	}
	b.WriteString(header + "\n")
	b.WriteString(a.renderTimer() + "\n\n")

	if a.board != nil {
		b.WriteString(a.renderColumns())
		b.WriteString("\n")
	}

	if a.message != "" {
		style := messageStyle
		if a.failed {
			style = errorStyle
		}
		b.WriteString(style.Render(a.message) + "\n")
	}

	b.WriteString(a.help.View(a.keys) + "\n")
	b.WriteString(statusBarStyle.Width(a.width).Render(a.statusLine()))
	return b.String()
}

func (a *App) renderTimer() string {
	if a.timer == nil {
		return mutedStyle.Render("No timer running")
	}
	return timerStyle.Render(fmt.Sprintf("● %s", a.timer.TicketTitle)) +
		mutedStyle.Render(fmt.Sprintf("  %s total, started %s",
			formatDuration(a.timer.ElapsedSeconds), humanize.Time(a.timer.StartedAt)))
}

func (a *App) renderColumns() string {
	width := a.width/len(models.Statuses) - 4
	if width < minColumnWidth {
		width = minColumnWidth
	}

	cols := make([]string, 0, len(a.board.Columns))
	for i, col := range a.board.Columns {
		var lines []string
		label := statusStyles[col.Status].Render(statusLabels[col.Status])
		lines = append(lines, fmt.Sprintf("%s %s", label, mutedStyle.Render(fmt.Sprintf("(%d)", len(col.Tickets)))))

		for j, t := range col.Tickets {
			lines = append(lines, a.renderCard(t, width, i == a.col && j == a.row))
		}

		style := columnStyle
		if i == a.col {
			style = activeColumnStyle
		}
		cols = append(cols, style.Width(width).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (a *App) renderCard(t tracker.BoardTicket, width int, selected bool) string {
	title := truncate(t.Title, width-2)
	meta := formatDuration(t.TrackedSeconds)
	if t.AssigneeID != "" {
		meta += " @" + t.AssigneeID
	}
	if a.timer != nil && a.timer.TicketID == t.ID {
		meta = "● " + meta
	}

	if selected {
		return selectedCardStyle.Width(width).Render(title + "\n" + meta)
	}
	line := cardStyle.Render(title)
	if t.Overdue {
		line = overdueStyle.Render("! " + title)
	}
	return line + "\n" + mutedStyle.Render(meta)
}

func (a *App) statusLine() string {
	if len(a.projects) == 0 {
		return " No project"
	}
	total := 0
	if a.board != nil {
		for _, c := range a.board.Columns {
			total += len(c.Tickets)
		}
	}
	return fmt.Sprintf(" Project %d/%d | Tickets: %d", a.projectIdx+1, len(a.projects), total)
}

// formatDuration renders seconds as 1h02m, 5m or 45s.
func formatDuration(secs int64) string {
	switch {
	case secs >= 3600:
		return fmt.Sprintf("%dh%02dm", secs/3600, (secs%3600)/60)
	case secs >= 60:
		return fmt.Sprintf("%dm", secs/60)
	}
	return fmt.Sprintf("%ds", secs)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 1 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
