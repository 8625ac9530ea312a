package slaconsole

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/policy"
	"incidencias/internal/domain/sla"
	"incidencias/internal/ports"
	"incidencias/internal/usecase/incidence"
)

type fakeBoard struct {
	rows       []incidence.BoardRow
	err        error
	lastFilter ports.IncidenceFilter
	detailIDs  []uint64
}

func (f *fakeBoard) SLABoard(_ context.Context, _ domain.Actor, filter ports.IncidenceFilter) ([]incidence.BoardRow, error) {
	f.lastFilter = filter
	return f.rows, f.err
}

func (f *fakeBoard) Get(_ context.Context, _ domain.Actor, incidenceID uint64) (incidence.Detail, error) {
	f.detailIDs = append(f.detailIDs, incidenceID)
	for _, row := range f.rows {
		if row.Incidence.ID == incidenceID {
			comment := "revisar cañería\nsegunda línea"
			return incidence.Detail{
				Incidence: row.Incidence,
				SLA:       row.SLA,
				History: []domain.HistoryEvent{
					{EventID: 1, IncidenceID: incidenceID, ActorRole: domain.RoleBeneficiary, Type: domain.EventCreated},
					{EventID: 2, IncidenceID: incidenceID, ActorRole: domain.RoleTechnician, Type: domain.EventComment, Comment: &comment},
				},
			}, nil
		}
	}
	return incidence.Detail{}, errors.New("missing")
}

func boardRow(id uint64, category string, state sla.State, remaining int) incidence.BoardRow {
	return incidence.BoardRow{
		Incidence: domain.Incidence{
			ID:       id,
			Category: category,
			State:    domain.StateOpen,
			Priority: policy.PriorityAlta,
		},
		SLA: &sla.Status{
			Priority:        policy.PriorityAlta,
			ResolutionDays:  5,
			DaysElapsed:     5 - remaining,
			DaysRemaining:   remaining,
			State:           state,
			ClosureDeadline: time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
		},
	}
}

func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatalf("cmd = nil, want command")
	}
	return cmd()
}

func TestNewSLAModelBuildsFilter(t *testing.T) {
	board := &fakeBoard{}
	model := NewSLAModel(context.Background(), board, SLAOptions{
		Actor:        domain.Actor{ID: 3, Role: domain.RoleFieldTechnician},
		StateFilter:  " en_proceso ",
		TechnicianID: 3,
	}).(*slaModel)

	if model.refreshInterval != 5*time.Second {
		t.Fatalf("refreshInterval = %s, want 5s", model.refreshInterval)
	}
	runCmd(t, model.loadBoardCmd())
	if board.lastFilter.State != domain.StateInProcess {
		t.Fatalf("filter.State = %q, want en_proceso", board.lastFilter.State)
	}
	if board.lastFilter.TechnicianID != 3 {
		t.Fatalf("filter.TechnicianID = %d, want 3", board.lastFilter.TechnicianID)
	}
}

func TestSLAModelLoadsBoardAndDetail(t *testing.T) {
	board := &fakeBoard{rows: []incidence.BoardRow{
		boardRow(11, "gas", sla.StateOverdue, 0),
		boardRow(12, "pintura", sla.StateOnTime, 4),
	}}
	model := NewSLAModel(context.Background(), board, SLAOptions{
		Actor: domain.Actor{ID: 1, Role: domain.RoleAdmin},
	}).(*slaModel)

	_, cmd := model.Update(runCmd(t, model.loadBoardCmd()))
	if len(model.rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(model.rows))
	}
	_, _ = model.Update(runCmd(t, cmd))
	if !model.hasDetail || model.detail.Incidence.ID != 11 {
		t.Fatalf("detail = %+v, want incidence 11", model.detail.Incidence)
	}

	view := model.View()
	for _, want := range []string{"SLA Board", "#11", "sla=vencido", "#12", "Closure: 2025-01-09", "revisar cañería"} {
		if !strings.Contains(view, want) {
			t.Fatalf("View() missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "segunda línea") {
		t.Fatalf("View() should only show the first comment line:\n%s", view)
	}
}

func TestSLAModelNavigationKeepsSelectionAcrossRefresh(t *testing.T) {
	board := &fakeBoard{rows: []incidence.BoardRow{
		boardRow(11, "gas", sla.StateOverdue, 0),
		boardRow(12, "pintura", sla.StateDueSoon, 1),
		boardRow(13, "ventanas", sla.StateOnTime, 4),
	}}
	model := NewSLAModel(context.Background(), board, SLAOptions{}).(*slaModel)
	_, _ = model.Update(runCmd(t, model.loadBoardCmd()))

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if model.selectedIndex != 1 {
		t.Fatalf("selectedIndex = %d, want 1", model.selectedIndex)
	}
	_, _ = model.Update(runCmd(t, cmd))
	if model.detail.Incidence.ID != 12 {
		t.Fatalf("detail id = %d, want 12", model.detail.Incidence.ID)
	}

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	if model.selectedIndex != 0 || cmd == nil {
		t.Fatalf("selectedIndex = %d cmd=%v, want 0 with detail reload", model.selectedIndex, cmd != nil)
	}
	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	if model.selectedIndex != 0 || cmd != nil {
		t.Fatalf("selectedIndex = %d, want 0 and no command at top", model.selectedIndex)
	}

	_, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	board.rows = []incidence.BoardRow{board.rows[2], board.rows[1]}
	_, _ = model.Update(runCmd(t, model.loadBoardCmd()))
	if model.selectedIndex != 1 {
		t.Fatalf("selectedIndex after refresh = %d, want 1 (incidence 12)", model.selectedIndex)
	}
}

func TestSLAModelIgnoresStaleDetail(t *testing.T) {
	board := &fakeBoard{rows: []incidence.BoardRow{
		boardRow(11, "gas", sla.StateOverdue, 0),
		boardRow(12, "pintura", sla.StateOnTime, 4),
	}}
	model := NewSLAModel(context.Background(), board, SLAOptions{}).(*slaModel)
	_, _ = model.Update(runCmd(t, model.loadBoardCmd()))

	_, _ = model.Update(detailLoadedMsg{incidenceID: 12, detail: incidence.Detail{Incidence: domain.Incidence{ID: 12}}})
	if model.hasDetail {
		t.Fatalf("hasDetail = true, want stale detail ignored")
	}
}

func TestSLAModelRefreshErrorKeepsRows(t *testing.T) {
	board := &fakeBoard{rows: []incidence.BoardRow{boardRow(11, "gas", sla.StateOverdue, 0)}}
	model := NewSLAModel(context.Background(), board, SLAOptions{}).(*slaModel)
	_, _ = model.Update(runCmd(t, model.loadBoardCmd()))

	board.err = errors.New("database is locked")
	_, _ = model.Update(runCmd(t, model.loadBoardCmd()))
	if len(model.rows) != 1 {
		t.Fatalf("len(rows) = %d, want previous rows kept", len(model.rows))
	}
	if !strings.Contains(model.status, "database is locked") {
		t.Fatalf("status = %q, want refresh error", model.status)
	}
}

func TestSLAModelQuitKey(t *testing.T) {
	model := NewSLAModel(context.Background(), &fakeBoard{}, SLAOptions{})
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("cmd = nil, want quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("cmd() = %T, want tea.QuitMsg", cmd())
	}
}

func TestStateStyleColorsByStatus(t *testing.T) {
	overdue := stateStyle(&sla.Status{State: sla.StateOverdue})
	if !overdue.GetBold() {
		t.Fatalf("overdue style should be bold")
	}
	if stateStyle(nil).GetBold() {
		t.Fatalf("missing status style should not be bold")
	}
}
