// internal/notify/sns.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

// SNS subject 상한.
const maxSubjectLen = 100

const patternSubject = "[PATTERN DETECTED] Multiple Client Incident Correlation"

// TopicAPI 는 sns.Publish 만 쓴다.
type TopicAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Broadcaster 는 alert topic 으로 사람이 읽는 알림을 보낸다.
type Broadcaster struct {
	client   TopicAPI
	topicARN string
}

func NewBroadcaster(client TopicAPI, topicARN string) *Broadcaster {
	return &Broadcaster{client: client, topicARN: topicARN}
}

func (b *Broadcaster) Channel() Channel { return ChannelBroadcast }

// Notify 는 CRITICAL/HIGH investigation alert 를 보낸다.
func (b *Broadcaster) Notify(ctx context.Context, ev model.SummaryEvent) Outcome {
	if b.topicARN == "" {
		return skipped(ChannelBroadcast, "alert topic not configured")
	}
	subject := fmt.Sprintf("[%s] Investigation Alert - %s", ev.Severity, ev.ClientName)
	if err := b.publish(ctx, subject, investigationMessage(ev)); err != nil {
		log.Warn().Err(err).
			Str("channel", string(ChannelBroadcast)).
			Str("investigation_id", ev.InvestigationID).
			Msg("error sending investigation alert")
		return failed(ChannelBroadcast, err)
	}
	log.Info().
		Str("channel", string(ChannelBroadcast)).
		Str("investigation_id", ev.InvestigationID).
		Msg("sent investigation alert")
	return sent(ChannelBroadcast)
}

// PatternAlert 는 cross-client pattern 감지 alert 를 보낸다.
func (b *Broadcaster) PatternAlert(ctx context.Context, a model.PatternAnalysis) error {
	if b.topicARN == "" {
		return nil
	}
	return b.publish(ctx, patternSubject, patternMessage(a))
}

func (b *Broadcaster) publish(ctx context.Context, subject, message string) error {
	_, err := b.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(b.topicARN),
		Subject:  aws.String(truncate(subject, maxSubjectLen)),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func investigationMessage(ev model.SummaryEvent) string {
	var b strings.Builder
	b.WriteString("Investigation Alert\n")
	b.WriteString("==================\n\n")
	fmt.Fprintf(&b, "Client: %s\n", ev.ClientName)
	fmt.Fprintf(&b, "Severity: %s\n", ev.Severity)
	fmt.Fprintf(&b, "Investigation ID: %s\n\n", ev.InvestigationID)
	fmt.Fprintf(&b, "Root Cause: %s\n\n", ev.Summary.RootCauseBrief)
	fmt.Fprintf(&b, "Affected Resources: %s\n", strings.Join(ev.Summary.ResourceTypes, ", "))
	fmt.Fprintf(&b, "Duration: %d minutes\n\n", ev.Summary.DurationMinutes)
	b.WriteString("Links:\n")
	fmt.Fprintf(&b, "- DevOps Agent: %s\n", ev.Links.DevOpsAgentInvestigation)
	fmt.Fprintf(&b, "- CloudWatch Logs: %s\n\n", ev.Links.CloudWatchLogs)
	fmt.Fprintf(&b, "Timestamp: %s\n", ev.Timestamp)
	return b.String()
}

func patternMessage(a model.PatternAnalysis) string {
	desc := a.PatternDescription
	if desc == "" {
		desc = "Unknown"
	}
	conf := a.Confidence
	if conf == "" {
		conf = model.ConfidenceUnknown
	}

	var b strings.Builder
	b.WriteString("Pattern Detection Alert\n")
	b.WriteString("=======================\n\n")
	fmt.Fprintf(&b, "Pattern: %s\n\n", desc)
	fmt.Fprintf(&b, "Affected Clients: %s\n\n", strings.Join(a.AffectedClients, ", "))
	b.WriteString("Recommended Actions:\n")
	for _, act := range a.RecommendedActions {
		fmt.Fprintf(&b, "- %s\n", act)
	}
	fmt.Fprintf(&b, "\nEscalation Needed: %t\n", a.EscalationNeeded)
	fmt.Fprintf(&b, "Confidence: %s\n\n", conf)
	b.WriteString("This indicates a potential broader issue affecting multiple clients.\n")
	b.WriteString("Please review the investigations and coordinate response.\n")
	return b.String()
}

// truncate 는 rune 단위로 n 자까지 자른다.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
