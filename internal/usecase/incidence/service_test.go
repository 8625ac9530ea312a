package incidence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"incidencias/internal/domain/derivation"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/policy"
	"incidencias/internal/domain/sla"
	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "incidencias/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "incidencias/internal/infrastructure/persistence/sqlite/uow"
	"incidencias/internal/ports"
)

var (
	admin       = domain.Actor{ID: 1, Role: domain.RoleAdmin}
	supervisor  = domain.Actor{ID: 2, Role: domain.RoleTechnician}
	fieldTech   = domain.Actor{ID: 3, Role: domain.RoleFieldTechnician}
	beneficiary = domain.Actor{ID: 10, Role: domain.RoleBeneficiary}
	neighbour   = domain.Actor{ID: 11, Role: domain.RoleBeneficiary}
)

type testCache struct {
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type serviceFixture struct {
	svc   *Service
	db    *gorm.DB
	cache *testCache
	clock *testClock
	repo  *sqliterepo.IncidenceRepository
}

func setupService(t *testing.T) serviceFixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "incidencias.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	p, err := policy.Default()
	if err != nil {
		t.Fatalf("policy.Default() error = %v", err)
	}
	calculator := sla.NewCalculator(p)
	machine := domain.NewMachine(derivation.NewDeriver(p), calculator)

	repo := sqliterepo.NewIncidenceRepository(db)
	housing := sqliterepo.NewHousingRepository(db)
	ctx := context.Background()
	owner := beneficiary.ID
	delivery := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	if err := housing.SaveHousing(ctx, ports.Housing{HousingID: 7, ProjectID: 1, Code: "A-101", BeneficiaryID: &owner, DeliveryDate: &delivery}); err != nil {
		t.Fatalf("SaveHousing() error = %v", err)
	}
	if err := housing.SaveHousing(ctx, ports.Housing{HousingID: 8, ProjectID: 2, Code: "B-201"}); err != nil {
		t.Fatalf("SaveHousing() error = %v", err)
	}
	if err := housing.GrantScope(ctx, fieldTech.ID, 1); err != nil {
		t.Fatalf("GrantScope() error = %v", err)
	}

	cache := newTestCache()
	clock := &testClock{now: time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)}
	svc := NewService(repo, housing, sqliteuow.NewUnitOfWork(db), cache, machine, calculator)
	svc.now = clock.Now

	return serviceFixture{svc: svc, db: db, cache: cache, clock: clock, repo: repo}
}

func (f serviceFixture) historyTypes(t *testing.T, incidenceID uint64) []domain.EventType {
	t.Helper()
	events, err := f.repo.ListHistory(context.Background(), incidenceID)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	out := make([]domain.EventType, 0, len(events))
	for _, event := range events {
		out = append(out, event.Type)
	}
	return out
}

func TestCreateResolvesBeneficiaryHousing(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "gas", Description: "olor a gas"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.HousingID != 7 || created.PriorityFinal != policy.PriorityAlta {
		t.Fatalf("created = %#v", created)
	}
	if created.WarrantyExpiry == nil || created.WarrantyExpiry.Format("2006-01-02") != "2029-01-10" {
		t.Fatalf("warranty expiry = %v, want 2029-01-10", created.WarrantyExpiry)
	}
	if created.AttentionDeadline.Format("2006-01-02") != "2025-01-06" || created.ClosureDeadline.Format("2006-01-02") != "2025-01-09" {
		t.Fatalf("deadlines = %s/%s", created.AttentionDeadline, created.ClosureDeadline)
	}
	if got := f.historyTypes(t, created.ID); len(got) != 1 || got[0] != domain.EventCreated {
		t.Fatalf("history = %v", got)
	}
	if len(f.cache.data) != 0 {
		t.Fatalf("cache = %#v, want no entries outside feed cursors", f.cache.data)
	}
}

func TestCreateRejections(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateInput{Actor: neighbour, Category: "gas", Description: "x"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Create() without housing error = %v, want validation", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, HousingID: 8, Category: "gas", Description: "x"}); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("Create() on foreign housing error = %v, want permission denied", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Actor: supervisor, HousingID: 99, Category: "gas", Description: "x"}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Create() on unknown housing error = %v, want not found", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "", Description: "x"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Create() without category error = %v, want validation", err)
	}

	var count int64
	f.db.Model(&model.Incidence{}).Count(&count)
	if count != 0 {
		t.Fatalf("incidences after rejections = %d", count)
	}
}

func TestLifecycleWithBeneficiaryRejection(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "griferia", Description: "gotea"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id := created.ID

	f.clock.now = f.clock.now.Add(time.Hour)
	if _, err := f.svc.Assign(ctx, id, fieldTech, 0, ""); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if _, err := f.svc.ChangeState(ctx, id, fieldTech, domain.StateResolved, "cambio de sello"); err != nil {
		t.Fatalf("ChangeState() error = %v", err)
	}

	if _, err := f.svc.ValidateResolution(ctx, id, beneficiary, false, ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("ValidateResolution() without comment error = %v, want validation", err)
	}
	stored, err := f.repo.GetIncidence(ctx, id)
	if err != nil {
		t.Fatalf("GetIncidence() error = %v", err)
	}
	if stored.State != domain.StateResolved {
		t.Fatalf("state after rejected validation = %s", stored.State)
	}

	result, err := f.svc.ValidateResolution(ctx, id, beneficiary, false, "sigue goteando")
	if err != nil {
		t.Fatalf("ValidateResolution() error = %v", err)
	}
	if result.Incidence.State != domain.StateInProcess || result.Event.Type != domain.EventBeneficiaryRejected || result.Event.EventID == 0 {
		t.Fatalf("result = %#v", result)
	}

	if _, err := f.svc.ChangeState(ctx, id, fieldTech, domain.StateResolved, ""); err != nil {
		t.Fatalf("ChangeState() error = %v", err)
	}
	closed, err := f.svc.ValidateResolution(ctx, id, beneficiary, true, "")
	if err != nil {
		t.Fatalf("ValidateResolution(conforme) error = %v", err)
	}
	if closed.Incidence.State != domain.StateClosed || closed.Incidence.ClosedAt == nil {
		t.Fatalf("closed = %#v", closed.Incidence)
	}

	want := []domain.EventType{
		domain.EventCreated,
		domain.EventAssigned,
		domain.EventStateChanged,
		domain.EventBeneficiaryRejected,
		domain.EventStateChanged,
		domain.EventBeneficiaryValidated,
	}
	got := f.historyTypes(t, id)
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("history = %v, want %v", got, want)
		}
	}

	if _, err := f.svc.Discard(ctx, id, admin, ""); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("Discard() on cerrada error = %v, want invalid transition", err)
	}
	if _, err := f.svc.Comment(ctx, id, admin, "tarde"); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("Comment() on cerrada error = %v, want invalid transition", err)
	}
	if len(f.cache.data) != 0 {
		t.Fatalf("cache = %#v, want transitions to leave the cache alone", f.cache.data)
	}
}

func TestAssignUsesProjectScope(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{Actor: supervisor, HousingID: 7, Category: "pintura", Description: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.svc.Assign(ctx, created.ID, supervisor, 5, ""); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	unscoped := domain.Actor{ID: 6, Role: domain.RoleFieldTechnician}
	if _, err := f.svc.Assign(ctx, created.ID, unscoped, 0, ""); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("Assign() unscoped takeover error = %v, want permission denied", err)
	}
	result, err := f.svc.Assign(ctx, created.ID, fieldTech, 0, "")
	if err != nil {
		t.Fatalf("Assign() scoped takeover error = %v", err)
	}
	if !result.Incidence.AssignedTo(fieldTech.ID) {
		t.Fatalf("technician = %v", result.Incidence.TechnicianID)
	}
}

type failingHistoryRepo struct {
	*sqliterepo.IncidenceRepository
}

func (r failingHistoryRepo) AppendHistory(context.Context, domain.HistoryEvent) (domain.HistoryEvent, error) {
	return domain.HistoryEvent{}, errors.New("disk full")
}

func TestTransitionIsAllOrNothing(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "pintura", Description: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	f.svc.repo = failingHistoryRepo{f.repo}
	if _, err := f.svc.Discard(ctx, created.ID, admin, "duplicada"); err == nil {
		t.Fatalf("Discard() error = nil, want history failure")
	}

	stored, err := f.repo.GetIncidence(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetIncidence() error = %v", err)
	}
	if stored.State != domain.StateOpen {
		t.Fatalf("state after failed append = %s, want abierta", stored.State)
	}
}

func TestReadsRespectBeneficiaryOwnership(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "gas", Description: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.svc.Comment(ctx, created.ID, beneficiary, "foto enviada"); err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	if _, err := f.svc.RecordMedia(ctx, created.ID, beneficiary, "fotos/1.jpg"); err != nil {
		t.Fatalf("RecordMedia() error = %v", err)
	}

	detail, err := f.svc.Get(ctx, beneficiary, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(detail.History) != 3 || detail.SLA == nil {
		t.Fatalf("detail = %#v", detail)
	}

	if _, err := f.svc.Get(ctx, neighbour, created.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Get() by neighbour error = %v, want not found", err)
	}
	listed, err := f.svc.List(ctx, neighbour, ports.IncidenceFilter{})
	if err != nil || len(listed) != 0 {
		t.Fatalf("List() by neighbour = %v, %v", listed, err)
	}
	listed, err = f.svc.List(ctx, supervisor, ports.IncidenceFilter{})
	if err != nil || len(listed) != 1 {
		t.Fatalf("List() by supervisor = %v, %v", listed, err)
	}
	if _, err := f.svc.List(ctx, supervisor, ports.IncidenceFilter{State: "rara"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("List() bad state error = %v", err)
	}
}

func TestSLAStatusFollowsClock(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "gas", Description: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	status, err := f.svc.SLAStatus(ctx, supervisor, created.ID)
	if err != nil {
		t.Fatalf("SLAStatus() error = %v", err)
	}
	if status.State != sla.StateOnTime || status.DaysElapsed != 1 {
		t.Fatalf("status = %#v, want dentro_plazo day 1", status)
	}

	f.clock.now = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	status, err = f.svc.SLAStatus(ctx, supervisor, created.ID)
	if err != nil {
		t.Fatalf("SLAStatus() error = %v", err)
	}
	if status.State != sla.StateOverdue {
		t.Fatalf("status = %#v, want vencido", status)
	}

	board, err := f.svc.SLABoard(ctx, supervisor, ports.IncidenceFilter{})
	if err != nil || len(board) != 1 || board[0].SLA.State != sla.StateOverdue {
		t.Fatalf("SLABoard() = %#v, %v", board, err)
	}
	if len(f.cache.data) != 0 {
		t.Fatalf("cache = %#v, want SLA reads uncached", f.cache.data)
	}
}

func TestFollowFeedAdvancesCursor(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{Actor: beneficiary, Category: "gas", Description: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, err := f.svc.FollowFeed(ctx, "notifier", 10)
	if err != nil {
		t.Fatalf("FollowFeed() error = %v", err)
	}
	if len(first.Events) != 1 || first.Events[0].IncidenceID != created.ID {
		t.Fatalf("first feed = %#v", first)
	}

	if _, err := f.svc.Assign(ctx, created.ID, supervisor, 3, ""); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	second, err := f.svc.FollowFeed(ctx, "notifier", 10)
	if err != nil {
		t.Fatalf("FollowFeed() error = %v", err)
	}
	if len(second.Events) != 1 || second.Events[0].Type != domain.EventAssigned || second.CursorAfter <= first.CursorAfter {
		t.Fatalf("second feed = %#v", second)
	}

	empty, err := f.svc.FollowFeed(ctx, "notifier", 10)
	if err != nil || len(empty.Events) != 0 || empty.CursorAfter != second.CursorAfter {
		t.Fatalf("third feed = %#v, %v", empty, err)
	}

	all, err := f.svc.HistoryFeed(ctx, 0, 0)
	if err != nil || len(all.Events) != 2 {
		t.Fatalf("HistoryFeed() = %#v, %v", all, err)
	}
}
