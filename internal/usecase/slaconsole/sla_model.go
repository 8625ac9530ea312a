package slaconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/sla"
	"incidencias/internal/ports"
	"incidencias/internal/usecase/incidence"
)

const maxShownEvents = 5

// Board is the read side the console renders.
type Board interface {
	SLABoard(ctx context.Context, actor domain.Actor, filter ports.IncidenceFilter) ([]incidence.BoardRow, error)
	Get(ctx context.Context, actor domain.Actor, incidenceID uint64) (incidence.Detail, error)
}

type SLAOptions struct {
	Actor           domain.Actor
	StateFilter     string
	TechnicianID    uint64
	RefreshInterval time.Duration
}

type slaModel struct {
	ctx             context.Context
	board           Board
	actor           domain.Actor
	filter          ports.IncidenceFilter
	refreshInterval time.Duration

	rows          []incidence.BoardRow
	selectedIndex int
	detail        incidence.Detail
	hasDetail     bool
	status        string
	loadedAt      time.Time
}

type boardLoadedMsg struct {
	rows []incidence.BoardRow
	err  error
	at   time.Time
}

type detailLoadedMsg struct {
	incidenceID uint64
	detail      incidence.Detail
	err         error
}

type tickMsg struct{}

func NewSLAModel(ctx context.Context, board Board, options SLAOptions) tea.Model {
	if ctx == nil {
		ctx = context.Background()
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	filter := ports.IncidenceFilter{
		State:        domain.State(strings.TrimSpace(options.StateFilter)),
		TechnicianID: options.TechnicianID,
	}
	return &slaModel{
		ctx:             ctx,
		board:           board,
		actor:           options.Actor,
		filter:          filter,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *slaModel) Init() tea.Cmd {
	return tea.Batch(m.loadBoardCmd(), m.tickCmd())
}

func (m *slaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadBoardCmd(), m.tickCmd())
	case boardLoadedMsg:
		if typed.err != nil {
			m.status = "refresh failed: " + typed.err.Error()
			logging.Warn(m.ctx, "sla console refresh failed", slog.Any("err", typed.err))
			return m, nil
		}
		previous, hadPrevious := m.selectedID()
		m.rows = typed.rows
		m.loadedAt = typed.at
		m.selectedIndex = 0
		if hadPrevious {
			for index, row := range m.rows {
				if row.Incidence.ID == previous {
					m.selectedIndex = index
					break
				}
			}
		}
		m.status = fmt.Sprintf("%d open incidences", len(m.rows))
		if len(m.rows) == 0 {
			m.hasDetail = false
			return m, nil
		}
		return m, m.loadDetailCmd()
	case detailLoadedMsg:
		selected, ok := m.selectedID()
		if !ok || selected != typed.incidenceID {
			return m, nil
		}
		if typed.err != nil {
			m.hasDetail = false
			m.status = fmt.Sprintf("detail #%d failed: %v", typed.incidenceID, typed.err)
			return m, nil
		}
		m.detail = typed.detail
		m.hasDetail = true
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.status = "refreshing"
			return m, m.loadBoardCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.rows)-1 {
				m.selectedIndex++
				return m, m.loadDetailCmd()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *slaModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("SLA Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"actor=%d role=%s state=%s refresh=%s",
		m.actor.ID,
		m.actor.Role,
		firstNonEmpty(string(m.filter.State), "open"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Queue"))
	builder.WriteString("\n")
	if len(m.rows) == 0 {
		builder.WriteString(dimStyle.Render("- no incidences"))
		builder.WriteString("\n\n")
	} else {
		for index, row := range m.rows {
			line := formatRow(row)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + stateStyle(row.SLA).Render(line))
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		record := m.detail.Incidence
		builder.WriteString(fmt.Sprintf("Incidence: #%d housing=%d\n", record.ID, record.HousingID))
		builder.WriteString(fmt.Sprintf("Category: %s\n", record.Category))
		builder.WriteString(fmt.Sprintf("State: %s\n", record.State))
		builder.WriteString(fmt.Sprintf("Priority: %s (%s)\n", record.Priority, record.PriorityBasis))
		builder.WriteString(fmt.Sprintf("Warranty: %s\n", formatWarranty(record)))
		builder.WriteString(fmt.Sprintf("Technician: %s\n", formatID(record.TechnicianID)))
		if m.detail.SLA != nil {
			builder.WriteString(fmt.Sprintf(
				"Closure: %s (%d/%d days, %.0f%%)\n",
				m.detail.SLA.ClosureDeadline.Format("2006-01-02"),
				m.detail.SLA.DaysElapsed,
				m.detail.SLA.ResolutionDays,
				m.detail.SLA.PercentElapsed,
			))
		}
		builder.WriteString("\nRecent Events:\n")
		events := m.detail.History
		if len(events) == 0 {
			builder.WriteString("- none\n")
		} else {
			start := len(events) - maxShownEvents
			if start < 0 {
				start = 0
			}
			for _, event := range events[start:] {
				builder.WriteString(fmt.Sprintf("- e%d %s %s %s\n", event.EventID, event.ActorRole, event.Type, commentLine(event.Comment)))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	status := firstNonEmpty(m.status, "ready")
	if !m.loadedAt.IsZero() {
		status += " @ " + m.loadedAt.Format("15:04:05")
	}
	builder.WriteString("- " + status)
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  r refresh  q quit"))
	return builder.String()
}

func (m *slaModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *slaModel) loadBoardCmd() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.board.SLABoard(m.ctx, m.actor, m.filter)
		return boardLoadedMsg{rows: rows, err: err, at: time.Now()}
	}
}

func (m *slaModel) loadDetailCmd() tea.Cmd {
	selected, ok := m.selectedID()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.board.Get(m.ctx, m.actor, selected)
		return detailLoadedMsg{incidenceID: selected, detail: detail, err: err}
	}
}

func (m *slaModel) selectedID() (uint64, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.rows) {
		return 0, false
	}
	return m.rows[m.selectedIndex].Incidence.ID, true
}

func formatRow(row incidence.BoardRow) string {
	record := row.Incidence
	if row.SLA == nil {
		return fmt.Sprintf("#%d [%s] %s %s sla=-", record.ID, record.State, record.Priority, record.Category)
	}
	return fmt.Sprintf(
		"#%d [%s] %s %s sla=%s left=%dd",
		record.ID,
		record.State,
		record.Priority,
		record.Category,
		row.SLA.State,
		row.SLA.DaysRemaining,
	)
}

func stateStyle(status *sla.Status) lipgloss.Style {
	style := lipgloss.NewStyle()
	if status == nil {
		return style.Foreground(lipgloss.Color("241"))
	}
	switch status.State {
	case sla.StateOverdue:
		return style.Foreground(lipgloss.Color("196")).Bold(true)
	case sla.StateDueSoon:
		return style.Foreground(lipgloss.Color("214"))
	default:
		return style.Foreground(lipgloss.Color("42"))
	}
}

func formatWarranty(record domain.Incidence) string {
	if record.WarrantyClass == nil {
		return "-"
	}
	out := string(*record.WarrantyClass)
	if record.WarrantyExpiry != nil {
		out += " until " + record.WarrantyExpiry.Format("2006-01-02")
	}
	if record.WarrantyValid != nil && !*record.WarrantyValid {
		out += " (expired)"
	}
	return out
}

func formatID(id *uint64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}

func commentLine(comment *string) string {
	if comment == nil {
		return ""
	}
	text := strings.TrimSpace(*comment)
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		return text[:index]
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
