// internal/correlator/correlator.go
package correlator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"

	"github.com/rs/zerolog/log"
)

const (
	// Window 는 pattern 분석 대상 기간.
	Window = 24 * time.Hour
	// MinRecords 미만이면 classifier 를 부르지 않는다.
	MinRecords = 3
)

// ErrMissingID 는 investigation_id 없는 trigger 이벤트.
var ErrMissingID = errors.New("no investigation_id in event")

// Records 는 store 의 최근 record 조회.
type Records interface {
	Recent(ctx context.Context, cutoff time.Time) ([]model.StoredInvestigation, error)
}

// Alerter 는 pattern 감지 시 broadcast.
type Alerter interface {
	PatternAlert(ctx context.Context, a model.PatternAnalysis) error
}

// Result 는 correlation pass 한 번의 결과.
type Result struct {
	InvestigationID string                `json:"investigation_id"`
	Message         string                `json:"message"`
	RecordCount     int                   `json:"record_count"`
	Analysis        model.PatternAnalysis `json:"analysis"`
}

// Correlator
//
// 이벤트가 들어올 때마다 최근 24시간 record 전체를 보고
// 여러 client 에 걸친 공통 원인이 있는지 classifier 에 묻는다.
//
// 결과는 저장하지 않는다. 감지되면 alert 한 번, 아니면 끝.
type Correlator struct {
	records    Records
	classifier Classifier
	alerter    Alerter
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(records Records, classifier Classifier, alerter Alerter, m *metrics.Metrics) *Correlator {
	return &Correlator{
		records:    records,
		classifier: classifier,
		alerter:    alerter,
		metrics:    m,
		now:        time.Now,
	}
}

func (c *Correlator) WithClock(now func() time.Time) *Correlator {
	c.now = now
	return c
}

// Analyze
//
// 에러를 돌려주는 경우는 id 누락과 store 조회 실패뿐이다.
// classifier 호출/파싱 실패는 patterns_detected=false + Error 로 degrade 한다.
func (c *Correlator) Analyze(ctx context.Context, ev model.SummaryEvent) (Result, error) {
	if ev.InvestigationID == "" {
		return Result{}, ErrMissingID
	}
	res := Result{InvestigationID: ev.InvestigationID}
	logger := log.With().Str("investigation_id", ev.InvestigationID).Logger()

	recs, err := c.records.Recent(ctx, c.now().Add(-Window))
	if err != nil {
		c.metrics.CorrelationPassesTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("correlate %s: %w", ev.InvestigationID, err)
	}
	res.RecordCount = len(recs)
	logger.Info().Int("records", len(recs)).Msg("found recent investigations")

	if len(recs) < MinRecords {
		c.metrics.CorrelationPassesTotal.WithLabelValues("insufficient").Inc()
		res.Message = "Insufficient data for pattern detection"
		logger.Info().Msg("not enough investigations for pattern detection")
		return res, nil
	}

	res.Analysis = c.classify(ctx, recs)
	res.Message = "Pattern analysis complete"

	switch {
	case res.Analysis.Error != "":
		c.metrics.CorrelationPassesTotal.WithLabelValues("degraded").Inc()
		logger.Warn().Str("error", res.Analysis.Error).Msg("pattern analysis degraded to no pattern")
	case res.Analysis.PatternsDetected:
		c.metrics.CorrelationPassesTotal.WithLabelValues("detected").Inc()
		if err := c.alerter.PatternAlert(ctx, res.Analysis); err != nil {
			logger.Error().Err(err).Msg("error sending pattern detection alert")
		} else {
			logger.Info().
				Strs("affected_clients", res.Analysis.AffectedClients).
				Bool("escalation_needed", res.Analysis.EscalationNeeded).
				Msg("sent pattern detection alert")
		}
	default:
		c.metrics.CorrelationPassesTotal.WithLabelValues("no_pattern").Inc()
	}
	return res, nil
}

// classify 는 실패를 Error 필드로 바꾼다. PatternsDetected 는 false 로 남는다.
func (c *Correlator) classify(ctx context.Context, recs []model.StoredInvestigation) model.PatternAnalysis {
	prompt, err := BuildPrompt(recs)
	if err != nil {
		return model.PatternAnalysis{Error: err.Error()}
	}

	c.metrics.ClassifierCallsTotal.Inc()
	text, err := c.classifier.Classify(ctx, prompt)
	if err != nil {
		return model.PatternAnalysis{Error: err.Error()}
	}

	a, err := ParseAnalysis(text)
	if err != nil {
		log.Debug().Str("response", text).Msg("unparseable classifier response")
		return model.PatternAnalysis{Error: ErrUnparseable.Error()}
	}
	return a
}
