package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"dlpanel/internal/api"
	"dlpanel/internal/livestate"
	"dlpanel/internal/triage"
)

type watchPane int

const (
	paneJobs watchPane = iota
	paneSubs
	paneLog
	paneCount
)

func (p watchPane) String() string {
	switch p {
	case paneJobs:
		return "Jobs"
	case paneSubs:
		return "Subscriptions"
	case paneLog:
		return "Log"
	default:
		return "?"
	}
}

// watchActions are the service calls the live view issues on key presses.
type watchActions interface {
	CancelJob(ctx context.Context, id string) error
	RetryJob(ctx context.Context, id string) (string, error)
	SyncSubscription(ctx context.Context, id string, enqueue bool) (api.SyncResult, error)
}

type watchOptions struct {
	Service         string
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
	Sort            triage.Criterion
	SoonWindow      time.Duration
	Now             func() time.Time
}

type watchModel struct {
	ctx     context.Context
	live    *livestate.Reconciler
	actions watchActions
	opts    watchOptions

	view      livestate.View
	pane      watchPane
	cursor    [paneCount]int
	filtering bool
	filter    textinput.Model
	status    string
	statusErr bool
	width     int
	height    int
}

type viewChangedMsg struct{}

type viewClosedMsg struct{}

type watchTickMsg time.Time

type refreshResultMsg struct {
	err error
}

type actionResultMsg struct {
	message string
	err     error
}

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	watchInfoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	watchPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	watchSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	watchTabStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	watchActiveStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func newWatchModel(ctx context.Context, live *livestate.Reconciler, actions watchActions, opts watchOptions) watchModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.SoonWindow <= 0 {
		opts.SoonWindow = triage.DefaultSoonWindow
	}
	if opts.Sort == "" {
		opts.Sort = triage.ByNextCheck
	}
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "filter by label"
	input.CharLimit = 128
	return watchModel{
		ctx:     ctx,
		live:    live,
		actions: actions,
		opts:    opts,
		view:    live.View(),
		filter:  input,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), waitForChange(m.live.Changes()), m.tickCmd())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.Width = max(m.width-8, 10)
		return m, nil
	case viewChangedMsg:
		m.view = m.live.View()
		m.clampCursors()
		return m, waitForChange(m.live.Changes())
	case viewClosedMsg:
		return m, tea.Quit
	case watchTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case refreshResultMsg:
		if msg.err != nil {
			m.setStatus("refresh failed: "+msg.err.Error(), true)
		} else if m.statusErr {
			m.setStatus("", false)
		}
		return m, nil
	case actionResultMsg:
		if msg.err != nil {
			m.setStatus("error: "+msg.err.Error(), true)
			return m, nil
		}
		m.setStatus(msg.message, false)
		return m, m.refreshCmd()
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m watchModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.pane = (m.pane + 1) % paneCount
		return m, nil
	case "shift+tab":
		m.pane = (m.pane + paneCount - 1) % paneCount
		return m, nil
	case "up", "k":
		if m.cursor[m.pane] > 0 {
			m.cursor[m.pane]--
		}
		return m, nil
	case "down", "j":
		if m.cursor[m.pane] < m.rowCount(m.pane)-1 {
			m.cursor[m.pane]++
		}
		return m, nil
	case "r":
		m.setStatus("refreshing...", false)
		return m, m.refreshCmd()
	case "c":
		job, ok := m.selectedJob()
		if !ok {
			m.setStatus("select a job to cancel", false)
			return m, nil
		}
		if !job.Status.CanCancel() {
			m.setStatus(fmt.Sprintf("job is %s; only pending or running jobs can be cancelled", statusLabel(job.Status)), true)
			return m, nil
		}
		m.setStatus("cancelling "+job.Label+"...", false)
		return m, m.cancelCmd(job)
	case "R":
		job, ok := m.selectedJob()
		if !ok {
			m.setStatus("select a job to retry", false)
			return m, nil
		}
		if !job.Status.CanRetry() {
			m.setStatus(fmt.Sprintf("job is %s; only failed or cancelled jobs can be retried", statusLabel(job.Status)), true)
			return m, nil
		}
		m.setStatus("retrying "+job.Label+"...", false)
		return m, m.retryCmd(job)
	case "s":
		sub, ok := m.selectedSubscription()
		if !ok {
			m.setStatus("select a subscription to sync", false)
			return m, nil
		}
		m.setStatus("syncing "+sub.Label+"...", false)
		return m, m.syncCmd(sub)
	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink
	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.resetCursors()
		}
		return m, nil
	case "L":
		m.live.ClearLog()
		m.setStatus("log cleared", false)
		return m, nil
	}
	return m, nil
}

func (m watchModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "esc", "ctrl+c":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.resetCursors()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.resetCursors()
	return m, cmd
}

func (m *watchModel) setStatus(message string, isErr bool) {
	m.status = message
	m.statusErr = isErr
}

func (m *watchModel) resetCursors() {
	m.cursor = [paneCount]int{}
}

func (m *watchModel) clampCursors() {
	for pane := range paneCount {
		rows := m.rowCount(pane)
		if m.cursor[pane] >= rows {
			m.cursor[pane] = max(rows-1, 0)
		}
	}
}

func (m watchModel) rowCount(pane watchPane) int {
	switch pane {
	case paneJobs:
		return len(m.visibleJobs())
	case paneSubs:
		return len(m.visibleSubscriptions())
	case paneLog:
		return len(m.view.Logs)
	default:
		return 0
	}
}

// visibleJobs lists jobs oldest first, narrowed by the label filter.
func (m watchModel) visibleJobs() []api.Job {
	jobs := api.SortJobsByCreated(m.view.Jobs)
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if needle == "" {
		return jobs
	}
	out := make([]api.Job, 0, len(jobs))
	for _, job := range jobs {
		if strings.Contains(strings.ToLower(job.Label), needle) {
			out = append(out, job)
		}
	}
	return out
}

// visibleSubscriptions lists due subscriptions first, then by the configured
// order, narrowed by the label filter.
func (m watchModel) visibleSubscriptions() []api.Subscription {
	subs := triage.SortForDisplay(m.view.Subscriptions, subscriptionNextCheck, subscriptionLabel, m.opts.Sort, m.opts.Now())
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if needle == "" {
		return subs
	}
	out := make([]api.Subscription, 0, len(subs))
	for _, sub := range subs {
		if strings.Contains(strings.ToLower(sub.Label), needle) {
			out = append(out, sub)
		}
	}
	return out
}

func (m watchModel) selectedJob() (api.Job, bool) {
	if m.pane != paneJobs {
		return api.Job{}, false
	}
	jobs := m.visibleJobs()
	idx := m.cursor[paneJobs]
	if idx < 0 || idx >= len(jobs) {
		return api.Job{}, false
	}
	return jobs[idx], true
}

func (m watchModel) selectedSubscription() (api.Subscription, bool) {
	if m.pane != paneSubs {
		return api.Subscription{}, false
	}
	subs := m.visibleSubscriptions()
	idx := m.cursor[paneSubs]
	if idx < 0 || idx >= len(subs) {
		return api.Subscription{}, false
	}
	return subs[idx], true
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return viewClosedMsg{}
		}
		return viewChangedMsg{}
	}
}

func (m watchModel) tickCmd() tea.Cmd {
	if m.opts.RefreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) refreshCmd() tea.Cmd {
	live, parent, timeout := m.live, m.ctx, m.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		err := errors.Join(live.Refresh(ctx), live.RefreshSubscriptions(ctx))
		if errors.Is(err, livestate.ErrClosed) {
			return nil
		}
		return refreshResultMsg{err: err}
	}
}

func (m watchModel) cancelCmd(job api.Job) tea.Cmd {
	actions, parent, timeout := m.actions, m.ctx, m.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		if err := actions.CancelJob(ctx, job.ID); err != nil {
			return actionResultMsg{err: fmt.Errorf("cancel %s: %w", job.Label, err)}
		}
		return actionResultMsg{message: "cancelled " + job.Label}
	}
}

func (m watchModel) retryCmd(job api.Job) tea.Cmd {
	actions, parent, timeout := m.actions, m.ctx, m.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		newID, err := actions.RetryJob(ctx, job.ID)
		if err != nil {
			return actionResultMsg{err: fmt.Errorf("retry %s: %w", job.Label, err)}
		}
		return actionResultMsg{message: fmt.Sprintf("retried %s as %s", job.Label, shortID(newID))}
	}
}

func (m watchModel) syncCmd(sub api.Subscription) tea.Cmd {
	actions, parent, timeout := m.actions, m.ctx, m.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		result, err := actions.SyncSubscription(ctx, sub.ID, true)
		if err != nil {
			return actionResultMsg{err: fmt.Errorf("sync %s: %w", sub.Label, err)}
		}
		return actionResultMsg{message: fmt.Sprintf("synced %s: queued episodes %s", sub.Label, formatEpisodes(result.EnqueuedEpisodes))}
	}
}

func (m watchModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	height := m.height
	if height <= 0 {
		height = 30
	}
	// Header, tabs, filter, status, help and panel borders take ten rows.
	bodyRows := max(height-10, 3)

	var body string
	switch m.pane {
	case paneJobs:
		body = m.viewJobs(width-4, bodyRows)
	case paneSubs:
		body = m.viewSubscriptions(width-4, bodyRows)
	case paneLog:
		body = m.viewLog(width-4, bodyRows)
	}

	sections := []string{
		m.viewHeader(),
		m.viewTabs(),
		watchPanelStyle.Width(max(width-2, 20)).Render(body),
	}
	if m.filtering || m.filter.Value() != "" {
		sections = append(sections, m.filter.View())
	}
	sections = append(sections, m.viewStatus(width), watchMutedStyle.Render(watchHelp))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

const watchHelp = "tab: pane | ↑/↓: move | r: refresh | c: cancel | R: retry | s: sync | /: filter | L: clear log | q: quit"

func (m watchModel) viewHeader() string {
	parts := []string{
		watchTitleStyle.Render("dlpanel"),
		watchMutedStyle.Render(m.opts.Service),
		fmt.Sprintf("%d pending · %d running · %d total", m.view.Pending, m.view.Running, m.view.Total),
	}
	switch {
	case m.view.Stale:
		parts = append(parts, watchWarnStyle.Render("offline snapshot"))
	case !m.view.JobsRefreshedAt.IsZero():
		parts = append(parts, watchMutedStyle.Render("refreshed "+humanize.RelTime(m.view.JobsRefreshedAt, m.opts.Now(), "ago", "from now")))
	default:
		parts = append(parts, watchMutedStyle.Render("connecting..."))
	}
	return strings.Join(parts, "  ")
}

func (m watchModel) viewTabs() string {
	tabs := make([]string, 0, paneCount)
	for pane := range paneCount {
		label := fmt.Sprintf("%s (%d)", pane, m.rowCount(pane))
		if pane == m.pane {
			tabs = append(tabs, watchActiveStyle.Render(label))
		} else {
			tabs = append(tabs, watchTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m watchModel) viewJobs(width, rows int) string {
	jobs := m.visibleJobs()
	if len(jobs) == 0 {
		return watchMutedStyle.Render("no jobs")
	}
	start, end := window(len(jobs), m.cursor[paneJobs], rows)
	lines := make([]string, 0, end-start)
	labelWidth := max(width-62, 16)
	for i := start; i < end; i++ {
		job := jobs[i]
		detail := formatStage(job)
		if job.Status == api.StatusFailed && job.Error != nil && *job.Error != "" {
			detail = *job.Error
		}
		line := fmt.Sprintf("%-*s %-9s %-28s %s",
			labelWidth, truncate(job.Label, labelWidth),
			statusLabel(job.Status),
			truncate(formatProgress(job), 28),
			truncate(detail, 20),
		)
		lines = append(lines, m.renderRow(line, i == m.cursor[paneJobs], jobStatusStyle(job.Status)))
	}
	return strings.Join(lines, "\n")
}

func (m watchModel) viewSubscriptions(width, rows int) string {
	subs := m.visibleSubscriptions()
	if len(subs) == 0 {
		return watchMutedStyle.Render("no subscriptions")
	}
	now := m.opts.Now()
	start, end := window(len(subs), m.cursor[paneSubs], rows)
	lines := make([]string, 0, end-start)
	labelWidth := max(width-30, 16)
	for i := start; i < end; i++ {
		sub := subs[i]
		style := watchMutedStyle
		next := "unscheduled"
		if t, ok := triage.ParseTimestamp(sub.NextCheckAt); ok {
			next = triage.RelativeLabel(t, now)
			switch {
			case !t.After(now):
				style = watchWarnStyle
				next = "due " + next
			case !t.After(now.Add(m.opts.SoonWindow)):
				style = watchInfoStyle
			default:
				style = lipgloss.NewStyle()
			}
		}
		line := fmt.Sprintf("%-*s ep %3d/%-3d %s",
			labelWidth, truncate(sub.Label, labelWidth),
			sub.LastDownloadedEpisode, sub.LastAvailableEpisode,
			next,
		)
		lines = append(lines, m.renderRow(line, i == m.cursor[paneSubs], style))
	}
	return strings.Join(lines, "\n")
}

func (m watchModel) viewLog(width, rows int) string {
	if len(m.view.Logs) == 0 {
		return watchMutedStyle.Render("log is empty")
	}
	logs := m.view.Logs
	if len(logs) > rows {
		logs = logs[len(logs)-rows:]
	}
	lines := make([]string, len(logs))
	for i, line := range logs {
		lines[i] = truncate(line, width)
	}
	return strings.Join(lines, "\n")
}

func (m watchModel) renderRow(line string, selected bool, style lipgloss.Style) string {
	if selected {
		return watchSelStyle.Render("> " + line)
	}
	return style.Render("  " + line)
}

func (m watchModel) viewStatus(width int) string {
	if m.status == "" {
		return ""
	}
	style := watchMutedStyle
	if m.statusErr {
		style = watchErrorStyle
	}
	return style.Render(truncate(m.status, max(width-2, 10)))
}

func jobStatusStyle(status api.JobStatus) lipgloss.Style {
	switch status {
	case api.StatusSuccess:
		return watchOKStyle
	case api.StatusFailed:
		return watchErrorStyle
	case api.StatusCancelled:
		return watchWarnStyle
	case api.StatusRunning:
		return watchInfoStyle
	default:
		return lipgloss.NewStyle()
	}
}

// window returns the [start, end) slice of total rows that keeps cursor
// visible within size rows.
func window(total, cursor, size int) (int, int) {
	if size <= 0 || total <= size {
		return 0, total
	}
	start := max(cursor-size+1, 0)
	return start, min(start+size, total)
}
