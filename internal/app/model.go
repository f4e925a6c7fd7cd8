package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/services"
	"github.com/plexus-ai/plexus-metrics/internal/ui/components"
	"github.com/plexus-ai/plexus-metrics/internal/ui/styles"
)

const (
	chartHeight = 8
	// chromeHeight is the number of rows used by everything except the
	// hourly table.
	chromeHeight = 2 + 4 + chartHeight + 2 + 1 + 1 + 2
	minTableRows = 3
)

// KeyMap defines the keybindings for the dashboard.
type KeyMap struct {
	NextEntity key.Binding
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Refresh    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextEntity: key.NewBinding(key.WithKeys("tab", "e"), key.WithHelp("tab", "next entity")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev account")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next account")),
		PageUp:     key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll down")),
		Refresh:    key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextEntity, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextEntity, k.Up, k.Down},
		{k.PageUp, k.PageDown},
		{k.Refresh, k.Help, k.Quit},
	}
}

// Options configures the dashboard.
type Options struct {
	Hours           int
	RefreshInterval time.Duration
	Selector        models.EntitySelector
}

// Model is the dashboard model.
type Model struct {
	ctx          context.Context
	backend      Backend
	state        *AppState
	eventChannel chan services.ServiceEvent

	keymap   KeyMap
	help     help.Model
	spinner  components.StatusSpinner
	viewport viewport.Model

	hours           int
	refreshInterval time.Duration
	selector        models.EntitySelector

	width  int
	height int
	ready  bool
}

// NewModel creates the dashboard model. Summaries are requested with ctx,
// so cancelling it aborts in-flight remote counts.
func NewModel(ctx context.Context, backend Backend, opts Options) *Model {
	if opts.Hours <= 0 {
		opts.Hours = 24
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	km := DefaultKeyMap()
	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{PageUp: km.PageUp, PageDown: km.PageDown}

	return &Model{
		ctx:             ctx,
		backend:         backend,
		state:           NewAppState(),
		keymap:          km,
		help:            help.New(),
		spinner:         components.NewStatusSpinner("Counting..."),
		viewport:        vp,
		hours:           opts.Hours,
		refreshInterval: opts.RefreshInterval,
		selector:        opts.Selector,
	}
}

// State returns the dashboard state.
func (m *Model) State() *AppState {
	return m.state
}

// Selector returns the entity currently shown.
func (m *Model) Selector() models.EntitySelector {
	return m.selector
}

// Init subscribes to service events and loads the first data.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick(),
		tickCmd(m.refreshInterval),
		subscribeToServicesCmd(m.backend),
		loadAccountsCmd(m.backend),
		loadCacheStatsCmd(m.ctx, m.backend),
	)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds,
			m.refreshSelected(),
			loadCacheStatsCmd(m.ctx, m.backend),
			tickCmd(m.refreshInterval),
		)
	case AccountsLoadedMsg:
		m.state.SetAccounts(msg.Accounts, msg.Active)
		m.syncViewport()
		cmds = append(cmds, m.refreshSelected())
	case SummaryLoadedMsg:
		cmds = append(cmds, m.handleSummaryLoaded(msg))
	case CacheStatsMsg:
		if msg.Err == nil {
			m.state.SetCacheStats(msg.Stats)
		}
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event))
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.help.Width = msg.Width
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-chromeHeight, minTableRows)
	m.syncViewport()
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil

	case key.Matches(msg, m.keymap.NextEntity):
		m.selector = m.selector.Next()
		m.syncViewport()
		return m.refreshSelected()

	case key.Matches(msg, m.keymap.Up):
		if m.state.MoveSelection(-1) {
			m.syncViewport()
			return m.refreshSelected()
		}
		return nil

	case key.Matches(msg, m.keymap.Down):
		if m.state.MoveSelection(1) {
			m.syncViewport()
			return m.refreshSelected()
		}
		return nil

	case key.Matches(msg, m.keymap.Refresh):
		return tea.Batch(m.refreshSelected(), loadCacheStatsCmd(m.ctx, m.backend))

	case key.Matches(msg, m.keymap.PageUp, m.keymap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	return nil
}

func (m *Model) handleSummaryLoaded(msg SummaryLoadedMsg) tea.Cmd {
	m.state.SetLoading(summaryKey{msg.AccountID, msg.Selector}.String(), false)

	if msg.Err != nil {
		return notifyErrorCmd(fmt.Sprintf("Failed to load %s: %v", msg.Selector.DisplayName(), msg.Err))
	}

	prev := m.state.GetSummary(msg.AccountID, msg.Selector)
	m.state.SetSummary(msg.Summary)
	m.syncViewport()

	if msg.Summary != nil && msg.Summary.Partial && (prev == nil || !prev.Partial) {
		return notifyWarningCmd(fmt.Sprintf("%s counts are partial", msg.Selector.DisplayName()))
	}
	return nil
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.AccountsChangedEvent:
		m.state.SetAccounts(e.Accounts, e.ActiveAccount)
		m.syncViewport()
		return m.refreshSelected()

	case services.SummaryUpdatedEvent:
		m.state.SetSummary(e.Summary)
		m.syncViewport()

	case services.ErrorEvent:
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

// refreshSelected requests a summary for the selected account and entity
// unless one is already in flight.
func (m *Model) refreshSelected() tea.Cmd {
	acc := m.state.SelectedAccount()
	if acc == nil {
		return nil
	}

	k := summaryKey{acc.ID, m.selector}.String()
	if m.state.IsLoading(k) {
		return nil
	}
	m.state.SetLoading(k, true)
	return loadSummaryCmd(m.ctx, m.backend, acc.ID, m.selector, m.hours)
}

func (m *Model) currentSummary() *models.Summary {
	acc := m.state.SelectedAccount()
	if acc == nil {
		return nil
	}
	return m.state.GetSummary(acc.ID, m.selector)
}

func (m *Model) syncViewport() {
	summary := m.currentSummary()
	if summary == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(components.RenderHourlyTable(summary.ChartData, m.width/3))
}

// View renders the dashboard.
func (m *Model) View() string {
	if !m.ready {
		return styles.ContentStyle.Render(m.spinner.Status(1))
	}

	sections := []string{m.renderHeader()}

	acc := m.state.SelectedAccount()
	summary := m.currentSummary()
	switch {
	case acc == nil:
		sections = append(sections, m.renderEmpty())
	case summary == nil:
		sections = append(sections, m.spinner.Centered(m.width, 5))
	default:
		sections = append(sections, m.renderCards(summary), m.renderChart(summary))
		if summary.Partial {
			sections = append(sections, styles.WarningTextStyle.Render(
				"! Some counts are partial: a page failed or the page limit was reached"))
		}
		sections = append(sections, m.viewport.View())
	}

	if n := m.renderNotifications(); n != "" {
		sections = append(sections, n)
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	parts := []string{styles.TitleStyle.Render("Plexus Metrics")}

	for _, sel := range models.AllSelectors() {
		if sel == m.selector {
			parts = append(parts, styles.ActiveEntityStyle.Background(styles.EntityColor(sel)).Render(sel.DisplayName()))
		} else {
			parts = append(parts, styles.InactiveEntityStyle.Render(sel.DisplayName()))
		}
	}

	if acc := m.state.SelectedAccount(); acc != nil {
		label := fmt.Sprintf("%s (%d/%d)", acc.DisplayName(), m.state.SelectedAccountIndex+1, m.state.GetAccountCount())
		parts = append(parts, styles.SubTitleStyle.Render(label))
	}

	if n := m.state.LoadingCount(); n > 0 {
		parts = append(parts, m.spinner.Status(n))
	}

	line := strings.Join(parts, "  ")
	if m.width > 0 {
		line = ansi.Truncate(line, m.width-2, "…")
	}
	return styles.HeaderStyle.Width(m.width).Render(line)
}

func (m *Model) renderEmpty() string {
	msg := lipgloss.JoinVertical(lipgloss.Center,
		styles.SubTitleStyle.Render("No accounts tracked"),
		styles.HelpStyle.Render("Add one with: plexus-metrics accounts add <key>"),
	)
	return styles.CenterBoth(msg, m.width, 5)
}

func (m *Model) renderCards(s *models.Summary) string {
	accent := styles.EntityColor(s.Selector)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		components.RenderStatCard("This hour", fmt.Sprintf("%d", s.CurrentHourCount), accent),
		components.RenderStatCard("Avg / hour", fmt.Sprintf("%d", s.AveragePerHour), accent),
		components.RenderStatCard("Peak hour", fmt.Sprintf("%d", s.PeakHourly), accent),
		components.RenderStatCard(fmt.Sprintf("Total %dh", s.Hours), fmt.Sprintf("%d", s.Total), accent),
		components.RenderStatCard("Trend", components.RenderSparkline(s.Counts(), 24), accent),
	)
}

func (m *Model) renderChart(s *models.Summary) string {
	caption := fmt.Sprintf("%s per hour, last %d hours", s.Selector.DisplayName(), s.Hours)
	return components.RenderLineChart(s.Counts(), m.width-12, chartHeight, caption)
}

func (m *Model) renderNotifications() string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return ""
	}

	lines := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = styles.SuccessTextStyle, "[OK]"
		case NotificationError:
			style, prefix = styles.ErrorTextStyle, "[ERR]"
		case NotificationWarning:
			style, prefix = styles.WarningTextStyle, "[WARN]"
		default:
			style, prefix = styles.InfoTextStyle, "[INFO]"
		}
		lines = append(lines, style.Render(prefix+" "+n.Message))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	var status []string
	if stats := m.state.GetCacheStats(); stats != nil {
		status = append(status, fmt.Sprintf("cache: %d entries, %d hits, %d misses", stats.Entries, stats.Hits, stats.Misses))
	}
	if t := m.state.GetLastUpdated(); !t.IsZero() {
		status = append(status, "updated "+t.Local().Format("15:04:05"))
	}

	footer := m.help.View(m.keymap)
	if len(status) > 0 {
		footer = lipgloss.JoinVertical(lipgloss.Left, styles.HelpStyle.Render(strings.Join(status, " · ")), footer)
	}
	return footer
}
