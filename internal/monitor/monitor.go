// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"

	"github.com/rs/zerolog/log"
)

// 협력자 interface. 구현은 state / poller / summarize / relay / archive 패키지.
type (
	Watermarks interface {
		Get(ctx context.Context) (time.Time, error)
		Set(ctx context.Context, t time.Time) error
	}
	Source interface {
		Poll(ctx context.Context, since time.Time) ([]model.Investigation, error)
	}
	Formatter interface {
		Summarize(inv model.Investigation) (model.SummaryEvent, int, error)
	}
	Bus interface {
		Publish(ctx context.Context, ev model.SummaryEvent) error
	}
	Archive interface {
		Archive(ctx context.Context, events []model.SummaryEvent) (string, error)
	}
)

// Outcome 은 investigation 하나의 처리 결과이다.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded" // bus 전달 성공
	OutcomeDropped   Outcome = "dropped"   // validation 실패, 이번 cycle 에서 버림
	OutcomeFailed    Outcome = "failed"    // delivery 실패, 다음 cycle 에 다시 시도
)

// ItemResult 는 Result.Items 의 한 줄.
type ItemResult struct {
	InvestigationID string
	CompletedAt     time.Time
	Outcome         Outcome
	Err             error
}

// Result 는 poll cycle 하나의 요약이다.
type Result struct {
	Client    string
	Message   string
	Since     time.Time
	Processed int // forwarded 건수
	Items     []ItemResult

	// Watermark 는 cycle 종료 후 저장된 값. Advanced 가 false 면 Since 와 같다.
	Watermark time.Time
	Advanced  bool

	ArchiveKey string
}

// Monitor
//
// client 하나의 poll cycle 을 수행한다.
//
//	watermark 읽기 → 새 investigation 조회 → 요약 → bus 전송 → (archive) → watermark 쓰기
//
// cycle 사이에 메모리 상태를 유지하지 않는다. 모든 cross-cycle 상태는 Watermarks 에 있다.
type Monitor struct {
	client    string
	state     Watermarks
	source    Source
	formatter Formatter
	bus       Bus
	archive   Archive // nil 이면 archive 비활성
	metrics   *metrics.Metrics
}

func New(client string, state Watermarks, source Source, formatter Formatter, bus Bus, m *metrics.Metrics) *Monitor {
	return &Monitor{
		client:    client,
		state:     state,
		source:    source,
		formatter: formatter,
		bus:       bus,
		metrics:   m,
	}
}

// WithArchive 는 전달 성공 이벤트를 archive 로도 남기도록 한다.
func (m *Monitor) WithArchive(a Archive) *Monitor {
	m.archive = a
	return m
}

// RunOnce
//
// 에러 분류:
//   - watermark 읽기 / investigation 조회 실패 → cycle 전체 실패 (watermark 그대로)
//   - 요약 실패(크기 초과 등) → 해당 investigation 만 drop, 나머지 계속
//   - bus 전달 실패 → 해당 investigation 만 중단, 나머지 계속
//   - watermark 쓰기 실패 → cycle 실패 (이미 보낸 이벤트는 다음 cycle 에 재전송될 수 있음)
//
// watermark 는 시간순으로 앞에서부터 "끊김 없이 처리된" 구간의 마지막 완료 시각까지만
// 전진한다. forwarded / dropped 는 처리된 것으로, failed 는 끊김으로 본다.
// 완료 시각이 실패 항목과 같은 항목도 끊김 쪽으로 본다 (watermark 는 시각 하나만 기억한다).
// 따라서 delivery 실패한 investigation 을 건너뛰어 전진하는 일은 없다. 실패 지점 이후에
// 이미 전달된 이벤트는 다음 cycle 에 다시 전송된다 (at-least-once).
func (m *Monitor) RunOnce(ctx context.Context) (Result, error) {
	res := Result{Client: m.client}

	since, err := m.state.Get(ctx)
	if err != nil {
		m.metrics.PollCyclesTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("read watermark: %w", err)
	}
	res.Since = since
	res.Watermark = since

	logger := log.With().Str("client", m.client).Logger()
	logger.Info().Time("since", since).Msg("investigation monitor triggered")

	investigations, err := m.source.Poll(ctx, since)
	if err != nil {
		m.metrics.PollCyclesTotal.WithLabelValues("failed").Inc()
		return res, err
	}

	if len(investigations) == 0 {
		m.metrics.PollCyclesTotal.WithLabelValues("no_new").Inc()
		res.Message = "No new investigations"
		logger.Info().Msg("no new completed investigations found")
		return res, nil
	}

	logger.Info().Int("count", len(investigations)).Msg("found completed investigations")

	var (
		forwarded []model.SummaryEvent
		failed    bool
		failedAt  time.Time // 가장 이른 delivery 실패 시각
	)

	for _, inv := range investigations {
		item, ev := m.process(ctx, inv)
		res.Items = append(res.Items, item)

		switch item.Outcome {
		case OutcomeFailed:
			if !failed || inv.CompletedAt.Before(failedAt) {
				failedAt = inv.CompletedAt
			}
			failed = true
		case OutcomeForwarded:
			res.Processed++
			forwarded = append(forwarded, ev)
		}
	}

	// 실패가 있으면 그 완료 시각과 "같은" 항목까지 포함해 그 앞에서 멈춘다.
	// 다음 poll 은 completed_at > watermark 이므로 동시각 그룹 전체가 다시 읽힌다.
	next := since
	for _, item := range res.Items {
		if item.Outcome == OutcomeFailed {
			continue
		}
		if failed && !item.CompletedAt.Before(failedAt) {
			continue
		}
		if item.CompletedAt.After(next) {
			next = item.CompletedAt
		}
	}

	res.Message = fmt.Sprintf("Processed %d investigations", res.Processed)

	if m.archive != nil && len(forwarded) > 0 {
		key, err := m.archive.Archive(ctx, forwarded)
		if err != nil {
			logger.Warn().Err(err).Msg("archive of forwarded events failed")
		}
		res.ArchiveKey = key
	}

	// 이번 cycle 에서 하나라도 전달했고, 전진할 구간이 있을 때만 쓴다.
	if res.Processed > 0 && next.After(since) {
		if err := m.state.Set(ctx, next); err != nil {
			m.metrics.PollCyclesTotal.WithLabelValues("failed").Inc()
			return res, fmt.Errorf("write watermark: %w", err)
		}
		m.metrics.WatermarkAdvancesTotal.Inc()
		res.Watermark = next
		res.Advanced = true
	}

	m.metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
	logger.Info().
		Int("processed", res.Processed).
		Int("total", len(investigations)).
		Time("watermark", res.Watermark).
		Bool("advanced", res.Advanced).
		Msg("investigation monitor cycle complete")
	return res, nil
}

// process 는 investigation 하나를 요약하고 bus 로 보낸다.
// 에러는 ItemResult 에 담기며 cycle 을 중단시키지 않는다.
func (m *Monitor) process(ctx context.Context, inv model.Investigation) (ItemResult, model.SummaryEvent) {
	item := ItemResult{InvestigationID: inv.ID, CompletedAt: inv.CompletedAt}
	logger := log.With().
		Str("client", m.client).
		Str("investigation_id", inv.ID).
		Str("severity", string(inv.Severity)).
		Logger()

	ev, size, err := m.formatter.Summarize(inv)
	if err != nil {
		m.metrics.EventsDroppedTotal.Inc()
		item.Outcome = OutcomeDropped
		item.Err = err
		logger.Error().Err(err).Int("bytes", size).Msg("dropping investigation: summary validation failed")
		return item, model.SummaryEvent{}
	}

	if err := m.bus.Publish(ctx, ev); err != nil {
		m.metrics.DeliveryFailuresTotal.Inc()
		item.Outcome = OutcomeFailed
		item.Err = err
		logger.Error().Err(err).Msg("error sending investigation to central bus")
		return item, model.SummaryEvent{}
	}

	m.metrics.EventsForwardedTotal.Inc()
	item.Outcome = OutcomeForwarded
	return item, ev
}

// Run 은 interval 마다 RunOnce 를 호출한다. 한 번에 하나의 cycle 만 돈다.
// cycle 실패는 로그로 남기고 다음 tick 에 다시 시도한다 (내부 재시도 없음).
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Str("client", m.client).Msg("investigation monitor cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
