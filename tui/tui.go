// Package tui shows running games in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/session"
)

const recentGames = 10

type TickMsg time.Time

// doneMsg is sent once the update channel is closed.
type doneMsg struct{}

type Model struct {
	updates <-chan session.Update
	results <-chan session.Result

	startTime time.Time
	now       time.Time
	turns     int
	nodes     int64
	cacheHits int
	games     int
	wins      int
	losses    int

	last   *session.Update
	recent []string
	done   bool
}

// New returns a model fed by updates and results. Either channel may be nil.
// The producer closes updates when every game has finished.
func New(updates <-chan session.Update, results <-chan session.Result) Model {
	now := time.Now()
	return Model{
		updates:   updates,
		results:   results,
		startTime: now,
		now:       now,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan session.Update) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

func waitForResult(results <-chan session.Result) tea.Cmd {
	if results == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return nil
		}
		return r
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForResult(m.results), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case session.Update:
		m.turns++
		m.nodes += msg.Decision.Nodes
		if msg.Decision.CacheHit {
			m.cacheHits++
		}
		m.last = &msg
		return m, waitForUpdate(m.updates)
	case session.Result:
		m.games++
		switch msg.Status {
		case game.StatusWon:
			m.wins++
		case game.StatusLost:
			m.losses++
		}
		line := fmt.Sprintf("%s %-16s %-7s score=%-5d turns=%-4d nodes=%d",
			shortID(msg.GameID), msg.Layout, msg.Status, msg.Score, msg.Turns, msg.Nodes)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > recentGames {
			m.recent = m.recent[:recentGames]
		}
		return m, waitForResult(m.results)
	case doneMsg:
		m.done = true
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	elapsed := m.now.Sub(m.startTime)
	turnsPerSec := 0.0
	if elapsed >= time.Second {
		turnsPerSec = float64(m.turns) / elapsed.Seconds()
	}

	fmt.Fprintf(&sb, "Games:      %d (won %d, lost %d)\n", m.games, m.wins, m.losses)
	fmt.Fprintf(&sb, "Turns:      %d\n", m.turns)
	fmt.Fprintf(&sb, "Nodes:      %d\n", m.nodes)
	fmt.Fprintf(&sb, "Cache hits: %d\n", m.cacheHits)
	fmt.Fprintf(&sb, "Duration:   %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Turns/Sec:  %.2f\n\n", turnsPerSec)

	if m.last != nil {
		d := m.last.Decision
		fmt.Fprintf(&sb, "%s %s  move=%s value=%d nodes=%d\n",
			shortID(m.last.GameID), m.last.Layout, d.Move, d.Value, d.Nodes)
		sb.WriteString(session.RenderBoard(m.last.State))
		sb.WriteByte('\n')
	}

	sb.WriteString("Recent Games:\n")
	for _, g := range m.recent {
		sb.WriteString(g)
		sb.WriteByte('\n')
	}

	if m.done {
		sb.WriteString("\nAll games finished. Press q to quit.\n")
	} else {
		sb.WriteString("\nPress q to quit.\n")
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
