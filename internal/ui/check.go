package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relcheck/internal/debug"
	apperrors "relcheck/internal/errors"
	"relcheck/internal/update"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	toastDuration = 3 * time.Second
	defaultWidth  = 80
	defaultHeight = 24
)

var logger = debug.Scope("ui")

// Checker runs one update check.
type Checker interface {
	Check(ctx context.Context, req update.CheckRequest) (update.Outcome, error)
}

type checkDoneMsg struct {
	gen     int
	outcome update.Outcome
	err     error
}

type toastTickMsg struct{}

func scheduleToastTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return toastTickMsg{}
	})
}

// checkCmd runs the check off the UI goroutine and tags the answer with the
// generation that started it.
func checkCmd(ctx context.Context, checker Checker, req update.CheckRequest, gen int) tea.Cmd {
	return func() tea.Msg {
		outcome, err := checker.Check(ctx, req)
		return checkDoneMsg{gen: gen, outcome: outcome, err: err}
	}
}

// CheckModel is the interactive update check view. Only the answer of the
// most recently started check is shown; earlier ones are dropped when they
// arrive.
type CheckModel struct {
	checker Checker
	req     update.CheckRequest
	keys    KeyMap
	format  string
	copyFn  func(string) error
	now     func() time.Time
	parent  context.Context

	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int

	gen      int
	inFlight bool
	cancel   context.CancelFunc

	finished bool
	outcome  update.Outcome
	err      error

	toast      string
	toastErr   bool
	toastUntil time.Time
}

// CheckModelOption configures a CheckModel.
type CheckModelOption func(*CheckModel)

// WithOutputFormat selects the changelog style (rich, light, dark, plain).
func WithOutputFormat(format string) CheckModelOption {
	return func(m *CheckModel) {
		m.format = format
	}
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(fn func(string) error) CheckModelOption {
	return func(m *CheckModel) {
		if fn != nil {
			m.copyFn = fn
		}
	}
}

// WithParentContext bounds every check the view starts.
func WithParentContext(ctx context.Context) CheckModelOption {
	return func(m *CheckModel) {
		if ctx != nil {
			m.parent = ctx
		}
	}
}

func withClock(now func() time.Time) CheckModelOption {
	return func(m *CheckModel) {
		m.now = now
	}
}

// NewCheckModel creates the view. The check starts with Init.
func NewCheckModel(checker Checker, req update.CheckRequest, opts ...CheckModelOption) *CheckModel {
	m := &CheckModel{
		checker: checker,
		req:     req,
		keys:    DefaultKeyMap(),
		format:  FormatRich,
		copyFn:  clipboard.WriteAll,
		now:     time.Now,
		parent:  context.Background(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styleSpinner),
		),
		width:  defaultWidth,
		height: defaultHeight,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.viewport = viewport.New(m.width, m.viewportHeight())
	return m
}

func (m *CheckModel) Init() tea.Cmd {
	return m.start()
}

func (m *CheckModel) start() tea.Cmd {
	m.releaseContext()
	m.gen++
	ctx, cancel := context.WithCancel(m.parent)
	m.cancel = cancel
	m.inFlight = true
	m.finished = false
	m.outcome = update.Outcome{}
	m.err = nil
	logger.Logf("check %d started (%s)", m.gen, m.req.Channel)
	return tea.Batch(m.spinner.Tick, checkCmd(ctx, m.checker, m.req, m.gen))
}

// abort stops the running check and makes sure its answer is ignored.
func (m *CheckModel) abort() {
	if m.inFlight {
		m.gen++
		m.inFlight = false
	}
	m.releaseContext()
}

func (m *CheckModel) releaseContext() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *CheckModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width
		m.viewport.Height = m.viewportHeight()
		m.refreshContent()
		return m, nil

	case checkDoneMsg:
		if msg.gen != m.gen || !m.inFlight {
			logger.Logf("dropping stale result of check %d (current %d)", msg.gen, m.gen)
			return m, nil
		}
		m.inFlight = false
		m.releaseContext()
		m.finished = true
		m.outcome, m.err = msg.outcome, msg.err
		m.refreshContent()
		if msg.err == nil && !msg.outcome.UpdateAvailable() {
			return m, m.showToast(OutcomeSummary(msg.outcome), false)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.inFlight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case toastTickMsg:
		if m.toast == "" {
			return m, nil
		}
		if !m.now().Before(m.toastUntil) {
			m.toast = ""
			return m, nil
		}
		return m, scheduleToastTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *CheckModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.abort()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if !m.inFlight {
			return m, tea.Quit
		}
		m.abort()
		m.finished = true
		m.err = apperrors.New(apperrors.CodeCanceled, "update check canceled", context.Canceled)
		m.refreshContent()
		return m, nil

	case key.Matches(msg, m.keys.Recheck):
		if m.inFlight {
			return m, nil
		}
		return m, m.start()

	case key.Matches(msg, m.keys.Copy):
		if !m.hasUpdate() {
			return m, nil
		}
		if err := m.copyFn(m.outcome.Result.DownloadURL); err != nil {
			return m, m.showToast(fmt.Sprintf("Copy failed: %v", err), true)
		}
		return m, m.showToast("Copied download URL to clipboard.", false)
	}

	if m.hasUpdate() {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CheckModel) showToast(text string, isErr bool) tea.Cmd {
	m.toast = text
	m.toastErr = isErr
	m.toastUntil = m.now().Add(toastDuration)
	return scheduleToastTick()
}

func (m *CheckModel) hasUpdate() bool {
	return !m.inFlight && m.err == nil && m.outcome.UpdateAvailable()
}

func (m *CheckModel) viewportHeight() int {
	// header, blank, blank, footer, toast border
	h := m.height - 7
	if h < 3 {
		h = 3
	}
	return h
}

func (m *CheckModel) refreshContent() {
	if !m.hasUpdate() {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(RenderOutcome(m.outcome, m.format, m.width))
	m.viewport.GotoTop()
}

// Result returns the answer shown when the view closed. Leaving before any
// check finished counts as canceled.
func (m *CheckModel) Result() (update.Outcome, error) {
	if !m.finished {
		return update.Outcome{}, apperrors.New(apperrors.CodeCanceled, "update check canceled", context.Canceled)
	}
	return m.outcome, m.err
}

func (m *CheckModel) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	meta := fmt.Sprintf("channel %s · installed %s", m.req.Channel, strings.TrimSpace(m.req.CurrentVersion))
	header := Truncate(styleHeader.Render("relcheck")+" "+styleMeta.Render(meta), width)

	var body string
	switch {
	case m.inFlight:
		body = m.spinner.View() + " " + styleText.Render("Checking for updates…")
	case m.err != nil:
		body = styleError.Render("✖ ") + styleText.Render(ErrorMessage(m.err))
	case m.outcome.UpdateAvailable():
		body = m.viewport.View()
	case m.finished:
		body = styleSuccess.Render("✔ ") + styleText.Render(OutcomeSummary(m.outcome))
	}

	sections := []string{header, body, styleFooter.Render(Truncate(m.help(), width))}
	if m.toast != "" {
		style := styleToast
		if m.toastErr {
			style = styleToastError
		}
		sections = append(sections, style.Render(m.toast))
	}
	return strings.Join(sections, "\n\n")
}

func (m *CheckModel) help() string {
	keys := m.keys
	keys.Cancel.SetEnabled(m.inFlight)
	keys.Recheck.SetEnabled(!m.inFlight)
	keys.Copy.SetEnabled(m.hasUpdate())
	keys.Up.SetEnabled(m.hasUpdate())
	keys.Down.SetEnabled(m.hasUpdate())
	keys.PageUp.SetEnabled(m.hasUpdate())
	keys.PageDown.SetEnabled(m.hasUpdate())
	return helpLine(keys.Copy, keys.Recheck, keys.Cancel, keys.Quit, keys.Up, keys.Down, keys.PageUp, keys.PageDown)
}

// RunCheck shows the interactive view until the user quits and returns the
// last answer it displayed.
func RunCheck(ctx context.Context, checker Checker, req update.CheckRequest, opts ...CheckModelOption) (update.Outcome, error) {
	opts = append([]CheckModelOption{WithParentContext(ctx)}, opts...)
	m := NewCheckModel(checker, req, opts...)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return update.Outcome{}, fmt.Errorf("run UI: %w", err)
	}
	if fm, ok := final.(*CheckModel); ok {
		return fm.Result()
	}
	return m.Result()
}
