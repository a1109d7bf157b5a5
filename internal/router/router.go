// internal/router/router.go
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"
	"invtriage/internal/notify"

	"github.com/rs/zerolog/log"
)

// ErrMissingID 는 investigation_id 없는 이벤트. 저장도 알림도 하지 않는다.
var ErrMissingID = errors.New("no investigation_id in event")

// Persister 는 investigation store 쓰기.
type Persister interface {
	Put(ctx context.Context, rec model.StoredInvestigation) error
}

// Tier 는 severity 에 따른 처리 등급.
type Tier string

const (
	TierPage   Tier = "page"   // CRITICAL / HIGH
	TierTicket Tier = "ticket" // MEDIUM
	TierStore  Tier = "store"  // 그 외: 저장만
)

// TierFor 는 severity → tier 고정 규칙.
func TierFor(s model.Severity) Tier {
	switch model.ParseSeverity(string(s)) {
	case model.SeverityCritical, model.SeverityHigh:
		return TierPage
	case model.SeverityMedium:
		return TierTicket
	default:
		return TierStore
	}
}

// Result 는 이벤트 하나의 routing 결과. Outcomes 는 실행 순서대로.
type Result struct {
	InvestigationID string           `json:"investigation_id"`
	Tier            Tier             `json:"tier"`
	Outcomes        []notify.Outcome `json:"outcomes"`
}

// Router
//
// severity 만 보고 결정하는 deterministic routing.
//
//	CRITICAL/HIGH : persist → page → ticket → broadcast
//	MEDIUM        : persist → ticket
//	LOW/그 외     : persist
//
// persist 실패만 이벤트 실패이고, 채널 실패는 Outcome 으로만 남는다.
type Router struct {
	store       Persister
	pager       notify.Notifier
	ticketer    notify.Notifier
	broadcaster notify.Notifier
	environment string
	metrics     *metrics.Metrics
	now         func() time.Time
}

func New(store Persister, pager, ticketer, broadcaster notify.Notifier, environment string, m *metrics.Metrics) *Router {
	return &Router{
		store:       store,
		pager:       pager,
		ticketer:    ticketer,
		broadcaster: broadcaster,
		environment: environment,
		metrics:     m,
		now:         time.Now,
	}
}

// WithClock 은 processed_at 시각 소스를 바꾼다.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

func (r *Router) Route(ctx context.Context, ev model.SummaryEvent) (Result, error) {
	if ev.InvestigationID == "" {
		return Result{}, ErrMissingID
	}
	if ev.Severity == "" {
		ev.Severity = model.SeverityMedium
	}

	tier := TierFor(ev.Severity)
	res := Result{InvestigationID: ev.InvestigationID, Tier: tier}

	logger := log.With().
		Str("investigation_id", ev.InvestigationID).
		Str("client", ev.ClientName).
		Str("severity", string(ev.Severity)).
		Logger()

	rec := model.StoredInvestigation{
		SummaryEvent: ev,
		ProcessedAt:  model.FormatTime(r.now()),
		Environment:  r.environment,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		r.metrics.PersistErrorsTotal.Inc()
		logger.Error().Err(err).Msg("error storing investigation")
		return res, fmt.Errorf("route %s: %w", ev.InvestigationID, err)
	}

	for _, n := range r.channels(tier) {
		out := notifyOrSkip(ctx, n, ev)
		r.metrics.NotificationsTotal.WithLabelValues(string(out.Channel), string(out.Status)).Inc()
		res.Outcomes = append(res.Outcomes, out)
	}

	r.metrics.EventsRoutedTotal.WithLabelValues(string(tier)).Inc()
	logger.Info().
		Str("tier", string(tier)).
		Interface("outcomes", res.Outcomes).
		Msg("routing complete")
	return res, nil
}

// channels 는 tier 별 채널 순서.
func (r *Router) channels(t Tier) []channelRef {
	switch t {
	case TierPage:
		return []channelRef{
			{notify.ChannelPage, r.pager},
			{notify.ChannelTicket, r.ticketer},
			{notify.ChannelBroadcast, r.broadcaster},
		}
	case TierTicket:
		return []channelRef{{notify.ChannelTicket, r.ticketer}}
	default:
		return nil
	}
}

type channelRef struct {
	name notify.Channel
	n    notify.Notifier
}

// notifyOrSkip: wiring 되지 않은 채널(nil)은 skipped.
func notifyOrSkip(ctx context.Context, c channelRef, ev model.SummaryEvent) notify.Outcome {
	if c.n == nil {
		return notify.Outcome{Channel: c.name, Status: notify.StatusSkipped, Reason: "channel not wired"}
	}
	return c.n.Notify(ctx, ev)
}
