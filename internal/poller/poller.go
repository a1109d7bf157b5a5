// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// FilterPattern 은 DevOps Agent 가 investigation 완료 시 남기는 로그 마커이다.
const FilterPattern = "investigation_completed"

// ErrRetrieval 은 investigation source 조회가 예상치 못하게 실패했음을 나타낸다.
// caller(monitor)는 이 cycle 전체를 실패 처리하고 watermark 를 건드리지 않는다.
var ErrRetrieval = errors.New("investigation retrieval failed")

// LogsAPI 는 Poller 가 사용하는 CloudWatch Logs client 의 부분집합이다.
// cloudwatchlogs.FilterLogEventsAPIClient 와 동일하다.
type LogsAPI interface {
	FilterLogEvents(ctx context.Context, in *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// Poller
//
// client 하나의 investigation 로그 그룹에서 since 이후 완료된
// investigation 을 읽어 완료 시각 오름차순으로 돌려준다.
type Poller struct {
	client   LogsAPI
	logGroup string
	metrics  *metrics.Metrics
}

func New(client LogsAPI, logGroup string, m *metrics.Metrics) *Poller {
	return &Poller{client: client, logGroup: logGroup, metrics: m}
}

// record 는 로그 메시지 본문(JSON)의 형태이다.
type record struct {
	Status            string   `json:"status"`
	InvestigationID   string   `json:"investigation_id"`
	Severity          string   `json:"severity"`
	RootCause         string   `json:"root_cause"`
	AffectedResources []string `json:"affected_resources"`
	DurationMinutes   int      `json:"duration_minutes"`
}

// Poll
//
// 반환되는 모든 investigation 은 CompletedAt > since (strict) 이다.
// CloudWatch 의 startTime 은 ms 단위 inclusive 라서 경계 값은 여기서 다시 거른다.
//
//   - 로그 그룹이 아직 없음(ResourceNotFoundException): 정상적인 "아직 없음" → 빈 결과
//   - 본문이 JSON 이 아닌 레코드: warn 로그 후 skip
//   - 그 외 조회 에러: ErrRetrieval 로 감싸서 반환 (재시도는 다음 scheduler tick)
func (p *Poller) Poll(ctx context.Context, since time.Time) ([]model.Investigation, error) {
	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(p.client, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:  aws.String(p.logGroup),
		StartTime:     aws.Int64(since.UnixMilli()),
		FilterPattern: aws.String(FilterPattern),
	})

	var out []model.Investigation

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var rnf *types.ResourceNotFoundException
			if errors.As(err, &rnf) {
				log.Info().
					Str("log_group", p.logGroup).
					Msg("investigation log group not found yet, treating as no data")
				return nil, nil
			}
			return nil, fmt.Errorf("%w: filter %s: %v", ErrRetrieval, p.logGroup, err)
		}

		for _, ev := range page.Events {
			inv, ok := p.parse(ev)
			if !ok {
				continue
			}
			if !inv.CompletedAt.After(since) {
				continue
			}
			out = append(out, inv)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})

	p.metrics.InvestigationsPolledTotal.Add(float64(len(out)))
	return out, nil
}

// parse 는 로그 이벤트 하나를 Investigation 으로 변환한다.
// COMPLETED 가 아닌 상태는 false 를 돌려준다.
func (p *Poller) parse(ev types.FilteredLogEvent) (model.Investigation, bool) {
	msg := aws.ToString(ev.Message)

	var r record
	if err := json.Unmarshal([]byte(msg), &r); err != nil {
		p.metrics.MalformedRecordsTotal.Inc()
		log.Warn().
			Err(err).
			Str("log_group", p.logGroup).
			Str("event_id", aws.ToString(ev.EventId)).
			Msg("could not parse investigation log message, skipping")
		return model.Investigation{}, false
	}
	if r.Status != "COMPLETED" {
		return model.Investigation{}, false
	}

	duration := r.DurationMinutes
	if duration < 0 {
		duration = 0
	}

	return model.Investigation{
		ID:                r.InvestigationID,
		Severity:          model.ParseSeverity(r.Severity),
		RootCause:         r.RootCause,
		AffectedResources: r.AffectedResources,
		CompletedAt:       time.UnixMilli(aws.ToInt64(ev.Timestamp)).UTC(),
		DurationMinutes:   duration,
	}, true
}
