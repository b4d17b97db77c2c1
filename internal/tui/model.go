package tui

import (
	"blindbox-draw/internal/flow"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/selector"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	historyShown = 5
	loginTimeout = 5 * time.Second
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	priceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94"))
	soldStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Strikethrough(true)
	openStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#FFD166"))
	resultStyle   = lipgloss.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 2)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5DADE2"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5B041"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#909090"))
)

// Controller 由 flow.Controller 實作
type Controller interface {
	Send(ev flow.Event) bool
	Cycle(direction int) bool
	Reload() bool
	Subscribe() (<-chan flow.View, func())
}

// LoginFunc 以新的憑證重新登入
type LoginFunc func(ctx context.Context, token string) error

type viewMsg flow.View

type loginMsg struct{ err error }

type Model struct {
	ctrl        Controller
	login       LoginFunc
	views       <-chan flow.View
	unsubscribe func()

	view     flow.View
	ready    bool
	spinner  spinner.Model
	input    textinput.Model
	entering bool
	loginErr error
	keys     keyMap
	help     help.Model
}

func NewModel(ctrl Controller, login LoginFunc) Model {
	views, unsubscribe := ctrl.Subscribe()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "paste access token"
	ti.EchoMode = textinput.EchoPassword
	ti.Width = 48

	return Model{
		ctrl:        ctrl,
		login:       login,
		views:       views,
		unsubscribe: unsubscribe,
		spinner:     sp,
		input:       ti,
		keys:        defaultKeyMap(),
		help:        help.New(),
	}
}

func (m Model) Init() bubbletea.Cmd {
	return bubbletea.Batch(m.spinner.Tick, waitForView(m.views))
}

func waitForView(views <-chan flow.View) bubbletea.Cmd {
	return func() bubbletea.Msg {
		return viewMsg(<-views)
	}
}

func (m Model) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = flow.View(msg)
		m.ready = true
		return m, waitForView(m.views)
	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loginMsg:
		m.loginErr = msg.err
		if msg.err == nil {
			m.ctrl.Send(flow.Dismissed{})
			m.ctrl.Reload()
		}
		return m, nil
	case bubbletea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case bubbletea.KeyMsg:
		if m.entering {
			return m.updateLogin(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.unsubscribe()
		return m, bubbletea.Quit
	case key.Matches(msg, m.keys.PrevBox):
		m.ctrl.Cycle(-1)
	case key.Matches(msg, m.keys.NextBox):
		m.ctrl.Cycle(1)
	case key.Matches(msg, m.keys.PrevSlot):
		if idx, ok := nextSlot(m.view, -1); ok {
			m.ctrl.Send(flow.SlotSelected{Index: idx})
		}
	case key.Matches(msg, m.keys.NextSlot):
		if idx, ok := nextSlot(m.view, 1); ok {
			m.ctrl.Send(flow.SlotSelected{Index: idx})
		}
	case key.Matches(msg, m.keys.Draw):
		m.ctrl.Send(flow.DrawRequested{})
	case key.Matches(msg, m.keys.Confirm):
		m.ctrl.Send(flow.Confirmed{})
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Send(flow.Cancelled{})
	case key.Matches(msg, m.keys.Dismiss):
		m.ctrl.Send(flow.Dismissed{})
	case key.Matches(msg, m.keys.Reload):
		m.ctrl.Reload()
	case key.Matches(msg, m.keys.Login):
		if m.login != nil {
			m.entering = true
			m.loginErr = nil
			return m, m.input.Focus()
		}
	default:
		// 數字鍵直接選格，1 對應第一格
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			m.ctrl.Send(flow.SlotSelected{Index: int(s[0] - '1')})
		}
	}
	return m, nil
}

func (m Model) updateLogin(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg.Type {
	case bubbletea.KeyEsc:
		m.entering = false
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case bubbletea.KeyEnter:
		token := strings.TrimSpace(m.input.Value())
		m.entering = false
		m.input.Blur()
		m.input.Reset()
		if token == "" {
			return m, nil
		}
		login := m.login
		return m, func() bubbletea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
			defer cancel()
			return loginMsg{err: login(ctx, token)}
		}
	}
	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// nextSlot 從目前選取的格位往 direction 找下一個可選的格位
func nextSlot(v flow.View, direction int) (int, bool) {
	n := len(v.Slots)
	if n == 0 {
		return 0, false
	}
	start := v.Selection.SlotIndex
	if v.Selection.StockID != v.Box.ID || start == selector.NoSlot {
		start = -1
		if direction < 0 {
			start = n
		}
	}
	for i := 1; i <= n; i++ {
		idx := ((start+direction*i)%n + n) % n
		if v.Slots[idx].Selectable {
			return idx, true
		}
	}
	return 0, false
}

func (m Model) View() string {
	if !m.ready {
		return "\n  " + m.spinner.View() + " Loading..."
	}
	v := m.view

	var b strings.Builder
	b.WriteString(headerStyle.Render(seriesTitle(v)))
	b.WriteString("  ")
	b.WriteString(priceStyle.Render(v.Price.Inline()))
	b.WriteString("\n\n")

	b.WriteString(m.boxView())
	b.WriteString("\n")
	b.WriteString(m.phaseView())

	if !v.Notice.Empty() {
		b.WriteString("\n")
		b.WriteString(noticeStyle(v.Notice.Level).Render(v.Notice.Message))
		b.WriteString("\n")
	}
	if v.ReauthRequired {
		b.WriteString("\n")
		b.WriteString(m.loginView())
	}
	if h := historyView(v); h != "" {
		b.WriteString("\n")
		b.WriteString(h)
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func seriesTitle(v flow.View) string {
	if v.Series != nil && v.Series.Name != "" {
		return v.Series.Name
	}
	return "Series #" + v.SeriesID.String()
}

func (m Model) boxView() string {
	v := m.view
	switch {
	case !v.Loaded:
		return m.spinner.View() + " Loading boxes...\n"
	case v.CatalogErr != nil && !v.HasBox:
		return errorStyle.Render("Could not load boxes: "+flow.Reason(v.CatalogErr)) + "\n"
	case !v.HasBox:
		return dimStyle.Render("No boxes available in this series.") + "\n"
	}

	var b strings.Builder
	remaining := "?"
	if v.Remaining.Known {
		remaining = fmt.Sprintf("%d/%d", v.Remaining.Count, len(v.Box.Contents))
	}
	fmt.Fprintf(&b, "Box %d/%d  #%s  remaining %s\n\n", v.BoxIndex+1, v.BoxCount, v.Box.ID, remaining)

	cells := make([]string, 0, len(v.Slots))
	for _, slot := range v.Slots {
		label := fmt.Sprintf(" %d ", slot.Index+1)
		switch {
		case slot.Selected:
			cells = append(cells, selectedStyle.Render(label))
		case slot.Sold:
			cells = append(cells, soldStyle.Render(label))
		case slot.Selectable:
			cells = append(cells, openStyle.Render(label))
		default:
			cells = append(cells, dimStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	b.WriteString("\n")
	return b.String()
}

func (m Model) phaseView() string {
	v := m.view
	switch v.Phase {
	case model.PhaseAwaitingConfirmation:
		return warnStyle.Render(v.ConfirmationText()) + dimStyle.Render("  [y/n]") + "\n"
	case model.PhaseSubmitting:
		return m.spinner.View() + " Drawing...\n"
	case model.PhaseResultShown:
		if v.Result == nil {
			return ""
		}
		return resultStyle.Render("You got: "+v.StyleName(v.Result.StyleID)) + "\n" + dimStyle.Render("esc to continue") + "\n"
	}
	return ""
}

func (m Model) loginView() string {
	if m.entering {
		return "Token: " + m.input.View() + "\n"
	}
	line := warnStyle.Render("Login required. Press L to enter a new token.")
	if m.loginErr != nil {
		line += "\n" + errorStyle.Render("Login failed: "+m.loginErr.Error())
	}
	return line + "\n"
}

func historyView(v flow.View) string {
	if len(v.History) == 0 {
		return ""
	}
	start := len(v.History) - historyShown
	if start < 0 {
		start = 0
	}
	names := make([]string, 0, historyShown)
	for i := len(v.History) - 1; i >= start; i-- {
		names = append(names, v.StyleName(v.History[i].StyleID))
	}
	return dimStyle.Render("Recent: " + strings.Join(names, ", "))
}

func noticeStyle(level flow.NoticeLevel) lipgloss.Style {
	switch level {
	case flow.NoticeError:
		return errorStyle
	case flow.NoticeWarning:
		return warnStyle
	default:
		return infoStyle
	}
}
