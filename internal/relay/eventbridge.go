// internal/relay/eventbridge.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/smithy-go"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// ErrDeliveryFailed 는 bus 가 PutEvents 응답에 failed entry 를 돌려줬거나
// transport 에러가 발생했음을 나타낸다. 둘 다 watermark 관점에서는 동일하게 "미전달".
var ErrDeliveryFailed = errors.New("event delivery failed")

// EventsAPI 는 Publisher 가 사용하는 EventBridge client 의 부분집합이다.
type EventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher 는 client 계정의 SummaryEvent 를 central 계정 bus 로 보낸다.
// at-least-once: 같은 이벤트가 다시 전송될 수 있으며 central 은 덮어쓰기로 흡수한다.
type Publisher struct {
	client EventsAPI
	busARN string
}

func NewPublisher(client EventsAPI, busARN string) *Publisher {
	return &Publisher{client: client, busARN: busARN}
}

// Publish 는 이벤트 하나를 PutEvents 로 전송한다.
// 성공은 FailedEntryCount == 0 인 응답을 받은 경우뿐이다.
func (p *Publisher) Publish(ctx context.Context, ev model.SummaryEvent) error {
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.InvestigationID, err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			Source:       aws.String(model.BusSource),
			DetailType:   aws.String(model.BusDetailType),
			Detail:       aws.String(string(detail)),
			EventBusName: aws.String(p.busARN),
		}},
	})
	if err != nil {
		// 권한/throttle 등 API 에러면 code 를 로그에 남긴다. 원인 에러는 그대로 wrap.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.Warn().
				Str("investigation_id", ev.InvestigationID).
				Str("code", apiErr.ErrorCode()).
				Str("fault", apiErr.ErrorFault().String()).
				Msg("event bus rejected PutEvents")
		}
		return fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, ev.InvestigationID, err)
	}

	if out.FailedEntryCount > 0 {
		return fmt.Errorf("%w: %s: %s", ErrDeliveryFailed, ev.InvestigationID, failedEntries(out.Entries))
	}

	log.Info().
		Str("investigation_id", ev.InvestigationID).
		Int("bytes", len(detail)).
		Msg("sent event to central event bus")
	return nil
}

// failedEntries 는 ErrorCode 가 있는 entry 만 "code: message" 형태로 모은다.
func failedEntries(entries []types.PutEventsResultEntry) string {
	var parts []string
	for _, e := range entries {
		if e.ErrorCode == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage)))
	}
	if len(parts) == 0 {
		return "unknown entry failure"
	}
	return strings.Join(parts, "; ")
}
