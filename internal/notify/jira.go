// internal/notify/jira.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invtriage/internal/model"

	jira "github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog/log"
)

// jiraSecret 은 Secrets Manager 에 저장된 JSON.
type jiraSecret struct {
	BaseURL    string `json:"base_url"`
	Email      string `json:"email"`
	APIToken   string `json:"api_token"`
	ProjectKey string `json:"project_key"`
	IssueType  string `json:"issue_type"` // 기본 "Task"
}

// Jira 는 tracking 용 ticket 을 만든다.
type Jira struct {
	secrets    SecretsAPI
	secretName string
	timeout    time.Duration
}

// NewJira: secretName 이 비어 있으면 모든 호출이 skipped 가 된다.
func NewJira(secrets SecretsAPI, secretName string, timeout time.Duration) *Jira {
	return &Jira{
		secrets:    secrets,
		secretName: secretName,
		timeout:    timeout,
	}
}

func (j *Jira) Channel() Channel { return ChannelTicket }

func (j *Jira) Notify(ctx context.Context, ev model.SummaryEvent) Outcome {
	if j.secretName == "" {
		return skipped(ChannelTicket, "ticketing not configured")
	}
	key, err := j.create(ctx, ev)
	if err != nil {
		log.Warn().Err(err).
			Str("channel", string(ChannelTicket)).
			Str("investigation_id", ev.InvestigationID).
			Msg("error creating ticket")
		return failed(ChannelTicket, err)
	}
	log.Info().
		Str("channel", string(ChannelTicket)).
		Str("investigation_id", ev.InvestigationID).
		Str("issue", key).
		Msg("created ticket")
	return sent(ChannelTicket)
}

// create 는 POST {base_url}/rest/api/2/issue 후 issue key 를 돌려준다.
func (j *Jira) create(ctx context.Context, ev model.SummaryEvent) (string, error) {
	var sec jiraSecret
	if err := loadSecret(ctx, j.secrets, j.secretName, &sec); err != nil {
		return "", err
	}
	if sec.BaseURL == "" || sec.APIToken == "" || sec.ProjectKey == "" {
		return "", errors.New("jira secret requires base_url, api_token and project_key")
	}

	tp := jira.BasicAuthTransport{Username: sec.Email, Password: sec.APIToken}
	httpClient := tp.Client()
	httpClient.Timeout = j.timeout

	client, err := jira.NewClient(httpClient, sec.BaseURL)
	if err != nil {
		return "", fmt.Errorf("jira client: %w", err)
	}

	issue, resp, err := client.Issue.CreateWithContext(ctx, buildJiraIssue(sec, ev))
	if err != nil {
		if resp != nil {
			return "", fmt.Errorf("jira status %d: %w", resp.StatusCode, err)
		}
		return "", fmt.Errorf("jira request: %w", err)
	}
	return issue.Key, nil
}

func buildJiraIssue(sec jiraSecret, ev model.SummaryEvent) *jira.Issue {
	issueType := sec.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s (%s)\n", ev.ClientName, ev.ClientAccountID)
	fmt.Fprintf(&b, "Severity: %s\n", ev.Severity)
	fmt.Fprintf(&b, "Investigation ID: %s\n\n", ev.InvestigationID)
	fmt.Fprintf(&b, "Root Cause: %s\n", ev.Summary.RootCauseBrief)
	fmt.Fprintf(&b, "Category: %s\n", ev.Summary.RootCauseCategory)
	fmt.Fprintf(&b, "Resource Types: %s\n", strings.Join(ev.Summary.ResourceTypes, ", "))
	fmt.Fprintf(&b, "Duration: %d minutes\n\n", ev.Summary.DurationMinutes)
	fmt.Fprintf(&b, "DevOps Agent: %s\n", ev.Links.DevOpsAgentInvestigation)
	fmt.Fprintf(&b, "CloudWatch Logs: %s\n", ev.Links.CloudWatchLogs)

	return &jira.Issue{Fields: &jira.IssueFields{
		Project:     jira.Project{Key: sec.ProjectKey},
		Summary:     truncate(fmt.Sprintf("[%s] %s: %s", ev.Severity, ev.ClientName, ev.Summary.RootCauseBrief), 255),
		Description: b.String(),
		Type:        jira.IssueType{Name: issueType},
		Labels:      []string{"devops-investigation", string(ev.Summary.RootCauseCategory)},
	}}
}
