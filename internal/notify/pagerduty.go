// internal/notify/pagerduty.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"invtriage/internal/model"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/rs/zerolog/log"
)

// PagerDutyEndpoint 는 Events API v2 enqueue 주소.
const PagerDutyEndpoint = "https://events.pagerduty.com/v2/enqueue"

// pagerDutySecret 은 Secrets Manager 에 저장된 JSON.
// routing_key 가 없으면 api_key 를 integration key 로 쓴다.
type pagerDutySecret struct {
	APIKey     string `json:"api_key"`
	ServiceID  string `json:"service_id"`
	RoutingKey string `json:"routing_key"`
}

// PagerDuty 는 on-call 엔지니어를 호출한다.
type PagerDuty struct {
	secrets    SecretsAPI
	secretName string
	endpoint   string
	timeout    time.Duration
}

// NewPagerDuty: secretName 이 비어 있으면 모든 호출이 skipped 가 된다.
func NewPagerDuty(secrets SecretsAPI, secretName string, timeout time.Duration) *PagerDuty {
	return &PagerDuty{
		secrets:    secrets,
		secretName: secretName,
		endpoint:   PagerDutyEndpoint,
		timeout:    timeout,
	}
}

// WithEndpoint 는 enqueue 주소를 바꾼다 (테스트용).
func (p *PagerDuty) WithEndpoint(u string) *PagerDuty {
	p.endpoint = u
	return p
}

func (p *PagerDuty) Channel() Channel { return ChannelPage }

func (p *PagerDuty) Notify(ctx context.Context, ev model.SummaryEvent) Outcome {
	if p.secretName == "" {
		return skipped(ChannelPage, "paging not configured")
	}
	if err := p.trigger(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("channel", string(ChannelPage)).
			Str("investigation_id", ev.InvestigationID).
			Msg("error paging engineer")
		return failed(ChannelPage, err)
	}
	log.Info().
		Str("channel", string(ChannelPage)).
		Str("investigation_id", ev.InvestigationID).
		Msg("paged on-call engineer")
	return sent(ChannelPage)
}

func (p *PagerDuty) trigger(ctx context.Context, ev model.SummaryEvent) error {
	var sec pagerDutySecret
	if err := loadSecret(ctx, p.secrets, p.secretName, &sec); err != nil {
		return err
	}
	key := sec.RoutingKey
	if key == "" {
		key = sec.APIKey
	}
	if key == "" {
		return errors.New("pagerduty secret has no routing_key or api_key")
	}

	// Events API 는 routing key 로 인증하므로 REST token 은 비워 둔다.
	client := pagerduty.NewClient("", pagerduty.WithV2EventsAPIEndpoint(p.endpoint))
	client.HTTPClient = &http.Client{Timeout: p.timeout}

	event := buildPagerDutyEvent(key, sec.ServiceID, ev)
	if _, err := client.ManageEventWithContext(ctx, &event); err != nil {
		return fmt.Errorf("pagerduty enqueue: %w", err)
	}
	return nil
}

// buildPagerDutyEvent
//
// dedup_key = <client_account_id>/<investigation_id>
// 같은 이벤트가 다시 들어와도 incident 는 하나만 열린다.
func buildPagerDutyEvent(routingKey, serviceID string, ev model.SummaryEvent) pagerduty.V2Event {
	out := pagerduty.V2Event{
		RoutingKey: routingKey,
		Action:     "trigger",
		DedupKey:   ev.ClientAccountID + "/" + ev.InvestigationID,
		Payload: &pagerduty.V2Payload{
			Summary:   fmt.Sprintf("[%s] %s: %s", ev.Severity, ev.ClientName, ev.Summary.RootCauseBrief),
			Source:    ev.ClientName,
			Severity:  pagerDutySeverity(ev.Severity),
			Timestamp: ev.Timestamp,
			Component: serviceID,
			Details: map[string]any{
				"investigation_id":    ev.InvestigationID,
				"client_account_id":   ev.ClientAccountID,
				"root_cause_category": ev.Summary.RootCauseCategory,
				"resource_types":      ev.Summary.ResourceTypes,
				"duration_minutes":    ev.Summary.DurationMinutes,
			},
		},
	}
	if l := ev.Links.DevOpsAgentInvestigation; l != "" {
		out.Links = append(out.Links, map[string]string{"href": l, "text": "DevOps Agent investigation"})
	}
	if l := ev.Links.CloudWatchLogs; l != "" {
		out.Links = append(out.Links, map[string]string{"href": l, "text": "CloudWatch Logs"})
	}
	return out
}

// pagerDutySeverity: 소문자 등 비정규 값도 router 와 같은 규칙으로 정규화한 뒤 매핑.
func pagerDutySeverity(s model.Severity) string {
	switch model.ParseSeverity(string(s)) {
	case model.SeverityCritical:
		return "critical"
	case model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}
