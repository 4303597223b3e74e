package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/render"
	"github.com/Zacy-Sokach/foodietour/internal/tour"
	"github.com/Zacy-Sokach/foodietour/internal/utils"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// 标题、输入框、提示、状态和帮助占用的行数
const chromeHeight = 9

// Planner 界面需要的控制器能力
type Planner interface {
	Submit(ctx context.Context, city string) error
	Poll(ctx context.Context) error
	Forget(ctx context.Context) error
}

// CitySource 提供热门城市，用于补全和拼写提示
type CitySource interface {
	PopularCities(ctx context.Context) ([]string, error)
}

type Options struct {
	Planner Planner
	Cities  CitySource
	// Recent 最近查询过的城市，优先出现在补全里
	Recent          []string
	RememberCities  bool
	CleanupFinished bool
	ExportDir       string
	Logger          *zap.Logger
	Now             func() time.Time
	RecordCity      func(string) error
}

type Model struct {
	opts Options
	keys keyMap

	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model
	help     help.Model

	state         tour.State
	pendingSubmit bool
	popular       []string
	hint          string
	flash         string
	showResult    bool
	width         int
	ready         bool
}

func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RecordCity == nil {
		opts.RecordCity = utils.RecordCity
	}

	ti := textinput.New()
	ti.Placeholder = "Enter city name"
	ti.Prompt = "City: "
	ti.CharLimit = 100
	ti.Width = 40
	ti.ShowSuggestions = true
	ti.SetSuggestions(mergeCities(opts.Recent))
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))

	m := Model{
		opts:     opts,
		keys:     defaultKeyMap(),
		input:    ti,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		viewport: viewport.New(80, 20),
		help:     help.New(),
		state:    tour.Idle{},
	}
	m.keys.sync(false, false, false)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadCities())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		case key.Matches(msg, m.keys.Poll):
			m.flash = ""
			return m, m.pollCmd()
		case key.Matches(msg, m.keys.Export):
			if c, ok := m.state.(tour.Completed); ok {
				return m, m.exportCmd(c)
			}
			return m, nil
		case key.Matches(msg, m.keys.Back):
			if m.loading() {
				return m, nil
			}
			m.showResult = false
			m.hint = ""
			m.flash = ""
			return m, m.input.Focus()
		case key.Matches(msg, m.keys.Scroll):
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		// 提交或轮询期间输入框不可编辑
		if m.loading() {
			return m, nil
		}
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case StateMsg:
		return m.applyState(msg.State)

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case popularCitiesMsg:
		if msg.Err != nil {
			m.opts.Logger.Warn("load popular cities failed", zap.Error(msg.Err))
			return m, nil
		}
		m.popular = msg.Cities
		m.input.SetSuggestions(mergeCities(m.opts.Recent, m.popular))
		return m, nil

	case submitDoneMsg:
		m.pendingSubmit = false
		m.keys.sync(m.loading(), m.hasResult(), m.polling())
		if msg.Err != nil || msg.City == "" {
			return m, nil
		}
		if !m.opts.RememberCities {
			return m, nil
		}
		m.opts.Recent = mergeCities([]string{msg.City}, m.opts.Recent)
		m.input.SetSuggestions(mergeCities(m.opts.Recent, m.popular))
		return m, m.recordCmd(msg.City)

	case pollDoneMsg:
		switch {
		case errors.Is(msg.Err, tour.ErrPollInFlight):
			m.flash = "A status check is already in progress."
		case errors.Is(msg.Err, tour.ErrNoActiveTask):
			m.flash = "No tour is being planned."
		}
		return m, nil

	case exportDoneMsg:
		if msg.Err != nil {
			m.flash = "Export failed: " + msg.Err.Error()
		} else {
			m.flash = "Exported to " + msg.Path
		}
		return m, nil

	case forgetDoneMsg:
		if msg.Err != nil && !errors.Is(msg.Err, tour.ErrNoActiveTask) {
			m.opts.Logger.Warn("cleanup finished task failed", zap.Error(msg.Err))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("AI Foodie Tour Planner"))
	sb.WriteString("\n\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	if m.hint != "" {
		sb.WriteString(hintStyle.Render(fmt.Sprintf("Did you mean %s?", m.hint)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if status := m.statusView(); status != "" {
		sb.WriteString(status)
		sb.WriteString("\n")
	}
	if m.showResult && m.hasResult() {
		sb.WriteString(m.viewport.View())
		sb.WriteString("\n")
	}
	if m.flash != "" {
		sb.WriteString(mutedStyle.Render(m.flash))
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Model) statusView() string {
	switch s := m.state.(type) {
	case tour.Submitting:
		return m.spinner.View() + statusStyle.Render(fmt.Sprintf(" Planning tour for %s...", s.City))
	case tour.Polling:
		var sb strings.Builder
		sb.WriteString(m.spinner.View())
		sb.WriteString(statusStyle.Render(fmt.Sprintf(" Status: %s (Task ID: %s)", s.Status, s.TaskID)))
		sb.WriteString("\n")
		sb.WriteString(mutedStyle.Render("Checking for updates..."))
		if s.Progress != nil {
			sb.WriteString("\n")
			sb.WriteString(m.progress.ViewAs(float64(*s.Progress) / 100))
		}
		if s.Notice != "" {
			sb.WriteString("\n")
			sb.WriteString(noticeStyle.Render("Notice: " + s.Notice))
		}
		return sb.String()
	case tour.Failed:
		if !m.showResult {
			return ""
		}
		return errorStyle.Render("Error: " + tour.ErrorMessage(s))
	}
	return ""
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.loading() {
		return m, nil
	}

	city := m.input.Value()
	m.hint = didYouMean(city, m.popular)
	m.flash = ""
	m.showResult = true
	m.pendingSubmit = true
	m.keys.sync(true, m.hasResult(), m.polling())

	planner := m.opts.Planner
	return m, func() tea.Msg {
		err := planner.Submit(context.Background(), city)
		return submitDoneMsg{City: strings.TrimSpace(city), Err: err}
	}
}

func (m Model) applyState(s tour.State) (tea.Model, tea.Cmd) {
	wasLoading := m.loading()
	m.state = s

	var cmds []tea.Cmd
	switch s := s.(type) {
	case tour.Completed:
		m.viewport.SetContent(render.Terminal(s.Result, m.contentWidth()))
		m.viewport.GotoTop()
		m.showResult = true
		cmds = append(cmds, m.forgetCmd())
	case tour.Failed:
		m.showResult = true
		cmds = append(cmds, m.forgetCmd())
	case tour.Idle, tour.Submitting:
		m.viewport.SetContent("")
	}

	if m.loading() {
		m.input.Blur()
		if !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
	} else {
		cmds = append(cmds, m.input.Focus())
	}
	m.keys.sync(m.loading(), m.hasResult(), m.polling())
	return m, tea.Batch(cmds...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.input.Width = max(10, width-len(m.input.Prompt)-2)
	m.progress.Width = min(max(10, width-4), 60)
	m.help.Width = width

	h := max(3, height-chromeHeight)
	if !m.ready {
		m.viewport = viewport.New(width, h)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = h
	}
	if c, ok := m.state.(tour.Completed); ok {
		m.viewport.SetContent(render.Terminal(c.Result, m.contentWidth()))
	}
}

func (m Model) contentWidth() int {
	if m.viewport.Width <= 4 {
		return 0
	}
	return m.viewport.Width - 2
}

func (m Model) loading() bool {
	return m.pendingSubmit || tour.IsLoading(m.state)
}

func (m Model) polling() bool {
	_, ok := m.state.(tour.Polling)
	return ok
}

func (m Model) hasResult() bool {
	_, ok := m.state.(tour.Completed)
	return ok
}

func (m Model) loadCities() tea.Cmd {
	src := m.opts.Cities
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cities, err := src.PopularCities(ctx)
		return popularCitiesMsg{Cities: cities, Err: err}
	}
}

func (m Model) pollCmd() tea.Cmd {
	planner := m.opts.Planner
	return func() tea.Msg {
		return pollDoneMsg{Err: planner.Poll(context.Background())}
	}
}

func (m Model) exportCmd(c tour.Completed) tea.Cmd {
	dir, now := m.opts.ExportDir, m.opts.Now()
	return func() tea.Msg {
		path, err := exportMarkdown(dir, c.Result, now)
		return exportDoneMsg{Path: path, Err: err}
	}
}

func (m Model) forgetCmd() tea.Cmd {
	if !m.opts.CleanupFinished {
		return nil
	}
	planner := m.opts.Planner
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return forgetDoneMsg{Err: planner.Forget(ctx)}
	}
}

func (m Model) recordCmd(city string) tea.Cmd {
	record, logger := m.opts.RecordCity, m.opts.Logger
	return func() tea.Msg {
		if err := record(city); err != nil {
			logger.Warn("record city history failed", zap.String("city", city), zap.Error(err))
		}
		return nil
	}
}
