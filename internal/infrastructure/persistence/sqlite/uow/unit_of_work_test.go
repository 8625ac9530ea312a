package uow

import (
	"context"
	"errors"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"incidencias/internal/domain/incidence"
	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/sqlite/model"
	"incidencias/internal/infrastructure/persistence/sqlite/repository"
)

func TestWithTxRollsBackIncidenceAndHistoryTogether(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := repository.NewIncidenceRepository(db)
	unit := NewUnitOfWork(db)
	ctx := context.Background()
	now := time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)
	failure := errs.Validation("boom")

	err = unit.WithTx(ctx, func(txCtx context.Context) error {
		created, err := repo.CreateIncidence(txCtx, incidence.Incidence{
			HousingID:         1,
			ReporterID:        1,
			Category:          "gas",
			Description:       "x",
			State:             incidence.StateOpen,
			ReportedAt:        now,
			AttentionDeadline: now,
			ClosureDeadline:   now,
		})
		if err != nil {
			return err
		}
		if _, err := repo.AppendHistory(txCtx, incidence.HistoryEvent{IncidenceID: created.ID, Type: incidence.EventCreated, CreatedAt: now}); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("WithTx() error = %v, want %v", err, failure)
	}

	var incidences, events int64
	db.Model(&model.Incidence{}).Count(&incidences)
	db.Model(&model.HistoryEvent{}).Count(&events)
	if incidences != 0 || events != 0 {
		t.Fatalf("rows after rollback = %d incidences, %d events", incidences, events)
	}
}

func TestWithTxJoinsOuterTransaction(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	unit := NewUnitOfWork(db)
	err = unit.WithTx(context.Background(), func(outerCtx context.Context) error {
		return unit.WithTx(outerCtx, func(innerCtx context.Context) error {
			if innerCtx != outerCtx {
				t.Fatalf("nested WithTx() opened a new transaction context")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
}
