package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/starmark/pkg/annotate"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// resultsSession is the part of a page session the browser drives.
type resultsSession interface {
	Entries(ctx context.Context) []annotate.Annotated
	Activate(ctx context.Context, id starcache.RepoID) (starcache.Status, error)
	Scan(ctx context.Context) annotate.Result
}

// =============================================================================
// ResultsModel - Interactive review of annotated results
// =============================================================================

type activatedMsg struct {
	repo   starcache.RepoID
	status starcache.Status
	err    error
}

type rescannedMsg struct {
	entries []annotate.Annotated
	result  annotate.Result
}

// ResultsModel is the bubbletea model for browsing annotated results. Space
// or enter activates the status control of the selected result.
type ResultsModel struct {
	Entries []annotate.Annotated
	Cursor  int
	Height  int
	Offset  int
	Message string
	Changed int

	ctx     context.Context
	session resultsSession
}

// NewResultsModel creates a results model over an open session.
func NewResultsModel(ctx context.Context, sess resultsSession) ResultsModel {
	return ResultsModel{
		Entries: sess.Entries(ctx),
		Height:  15,
		ctx:     ctx,
		session: sess,
	}
}

func (m ResultsModel) Init() tea.Cmd {
	return nil
}

func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "enter":
			if len(m.Entries) == 0 {
				return m, nil
			}
			return m, m.activate(m.Entries[m.Cursor].Repo)
		case "r":
			return m, m.rescan()
		}
	case activatedMsg:
		if msg.err != nil {
			m.Message = fmt.Sprintf("%s: %s not saved: %v", msg.repo, msg.status, msg.err)
		} else {
			m.Message = fmt.Sprintf("%s is now %s", msg.repo, msg.status)
			m.Changed++
		}
		for i := range m.Entries {
			if m.Entries[i].Repo == msg.repo {
				m.Entries[i].Status = msg.status
			}
		}
	case rescannedMsg:
		m.Entries = msg.entries
		if m.Cursor >= len(m.Entries) {
			m.Cursor = max(len(m.Entries)-1, 0)
		}
		m.Offset = min(m.Offset, m.Cursor)
		m.Message = fmt.Sprintf("Rescanned: %d new, %d already annotated", msg.result.Annotated, msg.result.Existing)
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ResultsModel) activate(id starcache.RepoID) tea.Cmd {
	return func() tea.Msg {
		status, err := m.session.Activate(m.ctx, id)
		return activatedMsg{repo: id, status: status, err: err}
	}
}

func (m ResultsModel) rescan() tea.Cmd {
	return func() tea.Msg {
		res := m.session.Scan(m.ctx)
		return rescannedMsg{entries: m.session.Entries(m.ctx), result: res}
	}
}

func (m ResultsModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Search Results"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space/⏎ cycle status  r rescan  q quit"))
	b.WriteString("\n\n")

	if len(m.Entries) == 0 {
		b.WriteString(listDimStyle.Render("  No annotated results on this page"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Entries))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, e.Repo.String(), "⭐ " + strconv.Itoa(e.Stars), e.Status.Symbol() + " " + e.Status.String()})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Repository", "Stars", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Entries) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col == 3 {
				base = statusStyles[m.Entries[idx].Status]
			}
			if idx == m.Cursor {
				if col == 1 {
					base = base.Foreground(colorCyan)
				}
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Entries))))
	if m.Message != "" {
		b.WriteString("  " + m.Message)
	}

	return b.String()
}
