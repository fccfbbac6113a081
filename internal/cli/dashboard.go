package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// Dashboard panel indices.
const (
	panelTasks = iota
	panelHealth
	panelSources
	panelCount
)

// refreshInterval is the automatic reload cadence for the dashboard.
const refreshInterval = 10 * time.Second

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	tasks      []models.Task
	dataSource string
	level      fallback.LevelInfo
	sources    []sourceSnapshot
	health     *healthSnapshot

	// State.
	loading bool
	err     error
}

type sourceSnapshot struct {
	name      string
	priority  int
	available bool
}

type healthSnapshot struct {
	breakerState string
	cacheEntries int
	cacheHitRate float64
	totalErrors  int
	opSuccess    map[string]float64
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	tasks      []models.Task
	dataSource string
	level      fallback.LevelInfo
	sources    []sourceSnapshot
	health     *healthSnapshot
	err        error
}

// tickMsg triggers a periodic refresh.
type tickMsg time.Time

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusReview     = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusPending    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusDeferred   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	bannerWarn = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("130")).
			Padding(0, 1)

	bannerCritical = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("124")).
			Padding(0, 1)

	availableStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	unavailableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTasks,
		loading:     true,
		level:       fallback.Describe(fallback.LevelNone),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadData, scheduleTick())
}

func scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(loadData, scheduleTick())

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.tasks = msg.tasks
		m.dataSource = msg.dataSource
		m.level = msg.level
		m.sources = msg.sources
		m.health = msg.health
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" taskdeck ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading && len(m.tasks) == 0 {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	header := title
	if banner := m.renderBanner(); banner != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", banner)
	}

	tasksPanel := m.renderTasksPanel()
	healthPanel := m.renderHealthPanel()
	sourcesPanel := m.renderSourcesPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, colWidth-4)
		healthPanel = m.applyPanelStyle(panelHealth, healthPanel, colWidth-4)
		sourcesPanel = m.applyPanelStyle(panelSources, sourcesPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, tasksPanel, healthPanel, sourcesPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, panelWidth)
		healthPanel = m.applyPanelStyle(panelHealth, healthPanel, panelWidth)
		sourcesPanel = m.applyPanelStyle(panelSources, sourcesPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, tasksPanel, healthPanel, sourcesPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", header, body, help)
}

// renderBanner shows the degradation message when data is degraded.
func (m dashboardModel) renderBanner() string {
	switch m.level.Level {
	case fallback.LevelNone:
		return ""
	case fallback.LevelCritical, fallback.LevelSevere:
		return bannerCritical.Render(fmt.Sprintf(" %s: %s ", strings.ToUpper(string(m.level.Level)), m.level.Message))
	default:
		return bannerWarn.Render(fmt.Sprintf(" %s: %s ", strings.ToUpper(string(m.level.Level)), m.level.Message))
	}
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks (%s)", m.dataSource)))
	b.WriteString("\n")

	if len(m.tasks) == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	counts := make(map[models.TaskStatus]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}

	// Display in lifecycle order.
	order := []models.TaskStatus{
		models.StatusInProgress,
		models.StatusBlocked,
		models.StatusReview,
		models.StatusPending,
		models.StatusDeferred,
		models.StatusDone,
		models.StatusCancelled,
	}
	for _, status := range order {
		count, ok := counts[status]
		if !ok || count == 0 {
			continue
		}
		label := fmt.Sprintf("  %-14s %d", status, count)
		b.WriteString(styleForStatus(status).Render(label))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d", len(m.tasks)))

	return b.String()
}

func (m dashboardModel) renderHealthPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Health"))
	b.WriteString("\n")

	if m.health == nil {
		b.WriteString("  No health data available.")
		return b.String()
	}

	h := m.health
	b.WriteString(fmt.Sprintf("  %-14s %s\n", "breaker", h.breakerState))
	b.WriteString(fmt.Sprintf("  %-14s %d entries\n", "cache", h.cacheEntries))
	b.WriteString(fmt.Sprintf("  %-14s %.0f%%\n", "hit rate", h.cacheHitRate*100))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "recent errors", h.totalErrors))

	if len(h.opSuccess) > 0 {
		b.WriteString("\n  Operations:\n")
		ids := make([]string, 0, len(h.opSuccess))
		for id := range h.opSuccess {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			b.WriteString(fmt.Sprintf("    %-22s %.0f%%\n", id, h.opSuccess[id]*100))
		}
	}

	return b.String()
}

func (m dashboardModel) renderSourcesPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Data Sources"))
	b.WriteString("\n")

	if len(m.sources) == 0 {
		b.WriteString("  No sources registered.")
		return b.String()
	}

	for _, s := range m.sources {
		state := availableStyle.Render("available")
		if !s.available {
			state = unavailableStyle.Render("unavailable")
		}
		b.WriteString(fmt.Sprintf("  %d. %-18s %s\n", s.priority, s.name, state))
	}

	b.WriteString(fmt.Sprintf("\n  Quality: %s", m.level.DataQuality))
	if len(m.level.DisabledFeatures) > 0 {
		b.WriteString(fmt.Sprintf("\n  Disabled: %s", strings.Join(m.level.DisabledFeatures, ", ")))
	}

	return b.String()
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusDone:
		return statusDone
	case models.StatusBlocked:
		return statusBlocked
	case models.StatusReview:
		return statusReview
	case models.StatusPending:
		return statusPending
	case models.StatusDeferred, models.StatusCancelled:
		return statusDeferred
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{}

	if Router == nil {
		result.err = fmt.Errorf("data router not initialized")
		return result
	}

	ctx := context.Background()
	tasksResult := Router.GetTasks(ctx)
	result.tasks = tasksResult.Tasks
	result.dataSource = tasksResult.Source
	result.level = fallback.Describe(tasksResult.Level)

	for _, src := range Router.Sources() {
		result.sources = append(result.sources, sourceSnapshot{
			name:      src.Name,
			priority:  src.Priority,
			available: src.Available,
		})
	}

	health := &healthSnapshot{opSuccess: make(map[string]float64)}
	if Runner != nil {
		health.breakerState = string(Runner.BreakerState())
		for _, id := range Runner.OperationIDs() {
			health.opSuccess[id] = Runner.Stats(id).SuccessRate
		}
	}
	if Cache != nil {
		stats := Cache.Stats()
		health.cacheEntries = stats.Entries
		health.cacheHitRate = stats.HitRate
	}
	if Classifier != nil {
		health.totalErrors = Classifier.Stats().Total
	}
	result.health = health

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for tasks and resilience health",
	Long: `Launch an interactive terminal dashboard showing tasks, resilience
health, and data source availability in a live-updating view. When data
is degraded a banner explains what is being served instead.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Router == nil {
			return fmt.Errorf("data router not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
