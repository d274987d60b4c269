// Command downshot-tui is a terminal console for a running downshot server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"downshot/internal/api"
	"downshot/pkg/geo"
	"downshot/pkg/mission"
)

const pollInterval = time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Background(lipgloss.Color("235")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

// stateColors maps mission states to their display color.
var stateColors = map[mission.RunState]lipgloss.Color{
	mission.StateIdle:             "244",
	mission.StateValidating:       "226",
	mission.StatePreparingTakeoff: "226",
	mission.StateTakingOff:        "208",
	mission.StateExecuting:        "75",
	mission.StateCompleted:        "46",
	mission.StateFailed:           "196",
}

// backend is the server surface the model drives.
type backend interface {
	telemetry(ctx context.Context) (api.TelemetryResponse, error)
	mission(ctx context.Context) (api.MissionResponse, error)
	latestLog(ctx context.Context) (string, error)
	setTarget(ctx context.Context, p geo.Point) (api.MissionResponse, error)
	start(ctx context.Context) (api.MissionResponse, error)
	reset(ctx context.Context) (api.MissionResponse, error)
	clearTrail(ctx context.Context) error
}

type model struct {
	srv backend

	telemetry api.TelemetryResponse
	mission   api.MissionResponse
	lastLog   string
	polled    time.Time

	inputMode   bool
	inputBuffer string
	notice      string
	err         error
}

type tickMsg time.Time

type snapshotMsg struct {
	telemetry api.TelemetryResponse
	mission   api.MissionResponse
	lastLog   string
	err       error
}

type actionMsg struct {
	action string
	resp   *api.MissionResponse
	err    error
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) poll() tea.Cmd {
	srv := m.srv
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
		defer cancel()

		var msg snapshotMsg
		if msg.telemetry, msg.err = srv.telemetry(ctx); msg.err != nil {
			return msg
		}
		if msg.mission, msg.err = srv.mission(ctx); msg.err != nil {
			return msg
		}
		msg.lastLog, msg.err = srv.latestLog(ctx)
		return msg
	}
}

// act runs a control request off the UI loop.
func (m model) act(action string, fn func(ctx context.Context) (*api.MissionResponse, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := fn(ctx)
		return actionMsg{action: action, resp: resp, err: err}
	}
}

func wrap(fn func(ctx context.Context) (api.MissionResponse, error)) func(ctx context.Context) (*api.MissionResponse, error) {
	return func(ctx context.Context) (*api.MissionResponse, error) {
		r, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return &r, nil
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputMode {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tickMsg:
		return m, tea.Batch(m.poll(), tick())

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.telemetry = msg.telemetry
		m.mission = msg.mission
		m.lastLog = msg.lastLog
		m.polled = time.Now()
		m.err = nil

	case actionMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("%s: %w", msg.action, msg.err)
			return m, nil
		}
		m.err = nil
		m.notice = msg.action + " done"
		if msg.resp != nil {
			m.mission = *msg.resp
			if msg.resp.Accepted != nil && !*msg.resp.Accepted {
				m.notice = msg.action + " ignored in state " + string(msg.resp.State)
			}
		}
	}
	return m, nil
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "t":
		m.inputMode = true
		m.inputBuffer = ""
		m.err = nil
	case "s":
		return m, m.act("start", wrap(m.srv.start))
	case "r":
		return m, m.act("reset", wrap(m.srv.reset))
	case "c":
		srv := m.srv
		return m, m.act("clear trail", func(ctx context.Context) (*api.MissionResponse, error) {
			return nil, srv.clearTrail(ctx)
		})
	}
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		raw := m.inputBuffer
		m.inputMode = false
		m.inputBuffer = ""
		p, err := geo.ParsePoint(raw)
		if err == nil && !p.Valid() {
			err = fmt.Errorf("target %s outside WGS84 range", p)
		}
		if err != nil {
			m.err = err
			return m, nil
		}
		srv := m.srv
		return m, m.act("target", wrap(func(ctx context.Context) (api.MissionResponse, error) {
			return srv.setTarget(ctx, p)
		}))
	case "esc":
		m.inputMode = false
		m.inputBuffer = ""
	case "backspace":
		if len(m.inputBuffer) > 0 {
			m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
		}
	default:
		if s := msg.String(); len(s) == 1 {
			m.inputBuffer += s
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("DOWNSHOT"))
	b.WriteString("\n\n")

	// Vehicle
	b.WriteString(headerStyle.Render("Vehicle"))
	b.WriteString("\n")
	tel := m.telemetry
	link := "disconnected"
	if tel.Connected {
		link = "connected (" + tel.Model + ")"
	}
	row(&b, "Link", link)
	if tel.Position != nil {
		row(&b, "Position", tel.Position.String())
	} else {
		row(&b, "Position", "no fix")
	}
	row(&b, "Altitude", fmt.Sprintf("%.1f m", tel.Altitude))
	row(&b, "Heading", fmt.Sprintf("%.0f°", tel.HeadingDegrees))
	row(&b, "Motors", onOff(tel.MotorsOn)+", flying: "+onOff(tel.IsFlying))
	b.WriteString("\n")

	// Mission
	b.WriteString(headerStyle.Render("Mission"))
	b.WriteString("\n")
	st := m.mission.State
	if st == "" {
		st = mission.StateIdle
	}
	row(&b, "State", lipgloss.NewStyle().Foreground(stateColors[st]).Bold(true).Render(string(st)))
	if m.mission.Target != nil {
		target := m.mission.Target.String()
		if tel.Position != nil {
			target += fmt.Sprintf("  (%.0f m)", geo.Distance(*tel.Position, *m.mission.Target))
		}
		row(&b, "Target", target)
	} else {
		row(&b, "Target", "none")
	}
	if m.mission.RunID != "" {
		row(&b, "Run", m.mission.RunID)
	}
	if m.mission.Error != "" {
		row(&b, "Error", errStyle.Render(m.mission.Error))
	}
	b.WriteString("\n")

	if m.lastLog != "" {
		b.WriteString(labelStyle.Render(m.lastLog))
		b.WriteString("\n\n")
	}

	if m.inputMode {
		b.WriteString(promptStyle.Render("Target (lat,lon): "))
		b.WriteString(inputStyle.Render(m.inputBuffer + "_"))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: confirm • esc: cancel"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("t: target • s: start • r: reset • c: clear trail • q: quit"))
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %-9s", label)))
	b.WriteString(value)
	b.WriteString("\n")
}

func onOff(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func main() {
	addr := flag.String("server", "http://localhost:1920", "downshot server base URL")
	flag.Parse()

	m := model{srv: newClient(*addr)}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
