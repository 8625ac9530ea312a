package incidence

import (
	"context"
	"sort"
	"strconv"
	"strings"

	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/sla"
	"incidencias/internal/errs"
	"incidencias/internal/ports"
)

const (
	defaultFeedLimit = 100
	maxFeedLimit     = 1000
)

// Get returns the incidence with its full history and a freshly computed SLA status.
// Beneficiaries only see incidences they reported.
func (s *Service) Get(ctx context.Context, actor domain.Actor, incidenceID uint64) (Detail, error) {
	if err := s.checkReady(ctx); err != nil {
		return Detail{}, err
	}

	record, err := s.visibleIncidence(ctx, actor, incidenceID)
	if err != nil {
		return Detail{}, err
	}
	history, err := s.repo.ListHistory(ctx, incidenceID)
	if err != nil {
		return Detail{}, err
	}

	return Detail{
		Incidence: record,
		History:   history,
		SLA:       s.statusOf(record),
	}, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, filter ports.IncidenceFilter) ([]domain.Incidence, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if filter.State != "" && !filter.State.Valid() {
		return nil, errs.Validation("unknown state %q", filter.State)
	}
	if actor.Role == domain.RoleBeneficiary {
		filter.ReporterID = actor.ID
	}
	return s.repo.ListIncidences(ctx, filter)
}

// SLAStatus is recomputed from the wall clock on every call and never cached.
func (s *Service) SLAStatus(ctx context.Context, actor domain.Actor, incidenceID uint64) (*sla.Status, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	record, err := s.visibleIncidence(ctx, actor, incidenceID)
	if err != nil {
		return nil, err
	}
	return s.statusOf(record), nil
}

// HistoryFeed returns events with event_id greater than afterEventID, oldest first.
func (s *Service) HistoryFeed(ctx context.Context, afterEventID uint64, limit int) (FeedResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return FeedResult{}, err
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	events, err := s.repo.ListHistoryAfter(ctx, afterEventID, limit)
	if err != nil {
		return FeedResult{}, err
	}
	result := FeedResult{Events: events, CursorAfter: afterEventID}
	if len(events) > 0 {
		result.CursorAfter = events[len(events)-1].EventID
	}
	return result, nil
}

// FollowFeed resumes a named consumer from its stored cursor and advances it. Without a cache
// every call starts from the beginning.
func (s *Service) FollowFeed(ctx context.Context, consumer string, limit int) (FeedResult, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return FeedResult{}, errs.Validation("feed consumer is required")
	}

	var cursor uint64
	if s.cache != nil {
		raw, found, err := s.cache.Get(ctx, cacheFeedCursorKey(consumer))
		if err != nil {
			return FeedResult{}, err
		}
		if found {
			parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return FeedResult{}, errs.Wrapf(err, "parse cursor of consumer %q", consumer)
			}
			cursor = parsed
		}
	}

	result, err := s.HistoryFeed(ctx, cursor, limit)
	if err != nil {
		return FeedResult{}, err
	}
	if s.cache != nil && result.CursorAfter > cursor {
		if err := s.cache.Set(ctx, cacheFeedCursorKey(consumer), strconv.FormatUint(result.CursorAfter, 10), 0); err != nil {
			return FeedResult{}, err
		}
	}
	return result, nil
}

func (s *Service) visibleIncidence(ctx context.Context, actor domain.Actor, incidenceID uint64) (domain.Incidence, error) {
	record, err := s.repo.GetIncidence(ctx, incidenceID)
	if err != nil {
		return domain.Incidence{}, err
	}
	if actor.Role == domain.RoleBeneficiary && record.ReporterID != actor.ID {
		return domain.Incidence{}, errs.NotFound("incidence %d", incidenceID)
	}
	return record, nil
}

func (s *Service) statusOf(record domain.Incidence) *sla.Status {
	if s.sla == nil {
		return nil
	}
	return s.sla.Status(record.SLASnapshot(), s.now())
}

type BoardRow struct {
	Incidence domain.Incidence
	SLA       *sla.Status
}

var boardRank = map[sla.State]int{
	sla.StateOverdue: 0,
	sla.StateDueSoon: 1,
	sla.StateOnTime:  2,
}

// SLABoard lists open work with its current SLA status, most urgent first.
func (s *Service) SLABoard(ctx context.Context, actor domain.Actor, filter ports.IncidenceFilter) ([]BoardRow, error) {
	records, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]BoardRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, BoardRow{Incidence: record, SLA: s.statusOf(record)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		left, right := rows[i].SLA, rows[j].SLA
		if left == nil || right == nil {
			return left != nil
		}
		if boardRank[left.State] != boardRank[right.State] {
			return boardRank[left.State] < boardRank[right.State]
		}
		return left.DaysRemaining < right.DaysRemaining
	})
	return rows, nil
}
