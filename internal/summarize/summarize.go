// internal/summarize/summarize.go
package summarize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"invtriage/internal/model"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// MaxEventBytes 는 EventBridge 단일 이벤트 상한과 같다. 초과하면 drop.
	MaxEventBytes = 256_000
	// WarnEventBytes 를 넘으면 warn 로그만 남긴다.
	WarnEventBytes = 200_000
	// MaxAffectedResources 는 요약에 싣는 리소스 개수 상한.
	MaxAffectedResources = 5
)

// ErrEventTooLarge 는 직렬화된 이벤트가 MaxEventBytes 를 넘었음을 나타낸다.
// 해당 investigation 만 이번 cycle 에서 버려지고 나머지는 계속 처리된다.
var ErrEventTooLarge = errors.New("summary event exceeds size limit")

// Source 는 요약 이벤트에 들어가는 client 측 고정 정보이다.
type Source struct {
	ClientName      string
	ClientAccountID string
	Tags            map[string]string

	AgentSpaceID string // DevOps Agent space
	Region       string // 콘솔 링크 region
	LogGroup     string // investigation 로그 그룹
}

// Summarizer 는 raw investigation 을 trust boundary 를 넘길 수 있는
// SummaryEvent 로 바꾸는 순수 변환기다. 외부 I/O 가 없다.
type Summarizer struct {
	src Source
}

func New(src Source) *Summarizer {
	if src.Tags == nil {
		src.Tags = map[string]string{}
	}
	return &Summarizer{src: src}
}

// Summarize
//
//  1. affected_resources 앞 5개 (순서 유지)
//  2. resource_types: 전체 리소스의 ARN service 집합
//  3. root cause category (ordered keyword table)
//  4. root cause 200자 truncate → redaction
//  5. 링크 생성 (원본 데이터 없음)
//  6. 직렬화 크기 검사: >256,000 bytes 면 ErrEventTooLarge
func (s *Summarizer) Summarize(inv model.Investigation) (model.SummaryEvent, int, error) {
	id := inv.ID
	if id == "" {
		id = "unknown"
	}

	resources := inv.AffectedResources
	if len(resources) > MaxAffectedResources {
		resources = resources[:MaxAffectedResources]
	}
	affected := make([]string, len(resources))
	copy(affected, resources)

	ev := model.SummaryEvent{
		EventType:       model.EventTypeInvestigationCompleted,
		InvestigationID: id,
		ClientAccountID: s.src.ClientAccountID,
		ClientName:      s.src.ClientName,
		Timestamp:       model.FormatTime(inv.CompletedAt),
		Severity:        inv.Severity,
		Status:          model.StatusRootCauseFound,
		Summary: model.Summary{
			AffectedResources: affected,
			ResourceTypes:     ResourceTypes(inv.AffectedResources),
			DurationMinutes:   inv.DurationMinutes,
			RootCauseCategory: Categorize(inv.RootCause),
			RootCauseBrief:    BriefRootCause(inv.RootCause),
			MitigationStatus:  model.MitigationPlanGenerated,
		},
		Links: model.Links{
			DevOpsAgentInvestigation: s.investigationLink(id),
			CloudWatchLogs:           s.logsLink(),
			AffectedApplication:      s.src.Tags["application_url"],
		},
		Tags: s.src.Tags,
	}
	if ev.Severity == "" {
		ev.Severity = model.SeverityMedium
	}

	size, err := EventSize(ev)
	if err != nil {
		return model.SummaryEvent{}, 0, fmt.Errorf("encode summary %s: %w", id, err)
	}
	if size > MaxEventBytes {
		return model.SummaryEvent{}, size, fmt.Errorf("%w: investigation %s is %d bytes (limit %d)", ErrEventTooLarge, id, size, MaxEventBytes)
	}
	if size > WarnEventBytes {
		log.Warn().
			Str("investigation_id", id).
			Int("bytes", size).
			Msg("summary event is close to the bus size limit")
	}

	return ev, size, nil
}

// EventSize 는 bus 로 보낼 JSON 의 바이트 수를 돌려준다.
func EventSize(ev model.SummaryEvent) (int, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (s *Summarizer) investigationLink(id string) string {
	return fmt.Sprintf("https://devops-agent.console.aws.amazon.com/spaces/%s/investigations/%s?region=%s",
		url.PathEscape(s.src.AgentSpaceID), url.PathEscape(id), url.QueryEscape(s.region()))
}

// logsLink 는 CloudWatch 콘솔 hash 경로 규칙('/' → "$252F")을 따른다.
func (s *Summarizer) logsLink() string {
	group := strings.ReplaceAll(s.src.LogGroup, "/", "$252F")
	return fmt.Sprintf("https://console.aws.amazon.com/cloudwatch/home?region=%s#logsV2:log-groups/log-group/%s",
		url.QueryEscape(s.region()), group)
}

func (s *Summarizer) region() string {
	if s.src.Region == "" {
		return "us-east-1"
	}
	return s.src.Region
}
