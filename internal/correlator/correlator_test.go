package correlator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------
// fakes
// ---------------------------------------------------------------

type fakeRecords struct {
	recs   []model.StoredInvestigation
	err    error
	cutoff time.Time
}

func (f *fakeRecords) Recent(_ context.Context, cutoff time.Time) ([]model.StoredInvestigation, error) {
	f.cutoff = cutoff
	return f.recs, f.err
}

type fakeClassifier struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeClassifier) Classify(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeAlerter struct {
	alerts []model.PatternAnalysis
	err    error
}

func (f *fakeAlerter) PatternAlert(_ context.Context, a model.PatternAnalysis) error {
	f.alerts = append(f.alerts, a)
	return f.err
}

var now = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

func recs(n int) []model.StoredInvestigation {
	clients := []string{"Acme", "Globex", "Initech", "Umbrella"}
	out := make([]model.StoredInvestigation, n)
	for i := range out {
		out[i] = model.StoredInvestigation{SummaryEvent: model.SummaryEvent{
			InvestigationID: "inv",
			ClientName:      clients[i%len(clients)],
			Severity:        model.SeverityHigh,
			Timestamp:       model.FormatTime(now.Add(-time.Duration(i) * time.Hour)),
			Summary: model.Summary{
				RootCauseCategory: model.CategoryNetworkConnectivity,
				ResourceTypes:     []string{"RDS"},
				RootCauseBrief:    "secret detail that must not reach the classifier",
			},
		}}
	}
	return out
}

const detected = "```json\n" + `{
  "patterns_detected": true,
  "pattern_description": "RDS connectivity in us-east-1",
  "affected_clients": ["Acme", "Globex", "Initech"],
  "recommended_actions": ["Check AWS Health Dashboard"],
  "escalation_needed": true,
  "confidence": "HIGH"
}` + "\n```"

type harness struct {
	records    *fakeRecords
	classifier *fakeClassifier
	alerter    *fakeAlerter
	metrics    *metrics.Metrics
	c          *Correlator
}

func newHarness(n int, reply string) *harness {
	h := &harness{
		records:    &fakeRecords{recs: recs(n)},
		classifier: &fakeClassifier{reply: reply},
		alerter:    &fakeAlerter{},
		metrics:    metrics.New(),
	}
	h.c = New(h.records, h.classifier, h.alerter, h.metrics).WithClock(func() time.Time { return now })
	return h
}

func trigger() model.SummaryEvent { return model.SummaryEvent{InvestigationID: "inv-9"} }

// ---------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------

func TestAnalyze_TwoRecordsDoesNotCallClassifier(t *testing.T) {
	h := newHarness(2, detected)

	res, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)

	assert.Zero(t, h.classifier.calls)
	assert.False(t, res.Analysis.PatternsDetected)
	assert.Equal(t, "Insufficient data for pattern detection", res.Message)
	assert.Equal(t, now.Add(-24*time.Hour), h.records.cutoff)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CorrelationPassesTotal.WithLabelValues("insufficient")))
}

func TestAnalyze_ThreeRecordsCallsClassifierAndAlerts(t *testing.T) {
	h := newHarness(3, detected)

	res, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)

	assert.Equal(t, 1, h.classifier.calls)
	assert.True(t, res.Analysis.PatternsDetected)
	assert.Equal(t, model.ConfidenceHigh, res.Analysis.Confidence)
	require.Len(t, h.alerter.alerts, 1)
	assert.Equal(t, []string{"Acme", "Globex", "Initech"}, h.alerter.alerts[0].AffectedClients)
	assert.Equal(t, 3, res.RecordCount)
}

func TestAnalyze_PromptCarriesOnlySummaryFields(t *testing.T) {
	h := newHarness(3, detected)
	_, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)

	p := h.classifier.prompts[0]
	assert.Contains(t, p, `"root_cause_category": "network_connectivity"`)
	assert.Contains(t, p, `"client": "Globex"`)
	assert.NotContains(t, p, "secret detail")
	assert.Contains(t, p, `"confidence": "HIGH|MEDIUM|LOW"`)
}

func TestAnalyze_NoPatternDoesNotAlert(t *testing.T) {
	h := newHarness(4, `{"patterns_detected": false, "pattern_description": "", "affected_clients": [], "recommended_actions": [], "escalation_needed": false}`)

	res, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)

	assert.False(t, res.Analysis.PatternsDetected)
	assert.Equal(t, model.ConfidenceUnknown, res.Analysis.Confidence)
	assert.Empty(t, h.alerter.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CorrelationPassesTotal.WithLabelValues("no_pattern")))
}

func TestAnalyze_ClassifierFailureDegrades(t *testing.T) {
	h := newHarness(3, "")
	h.classifier.err = errors.New("ThrottlingException")

	res, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)

	assert.False(t, res.Analysis.PatternsDetected)
	assert.Contains(t, res.Analysis.Error, "ThrottlingException")
	assert.Empty(t, h.alerter.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CorrelationPassesTotal.WithLabelValues("degraded")))
}

func TestAnalyze_UnparseableReplyDegrades(t *testing.T) {
	h := newHarness(3, "I think there might be a pattern here.")

	res, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)

	assert.False(t, res.Analysis.PatternsDetected)
	assert.Equal(t, ErrUnparseable.Error(), res.Analysis.Error)
}

func TestAnalyze_AlertFailureIsNotFatal(t *testing.T) {
	h := newHarness(3, detected)
	h.alerter.err = errors.New("sns down")

	res, err := h.c.Analyze(context.Background(), trigger())
	require.NoError(t, err)
	assert.True(t, res.Analysis.PatternsDetected)
}

func TestAnalyze_StoreFailureIsReturned(t *testing.T) {
	h := newHarness(3, detected)
	h.records.err = errors.New("scan failed")

	_, err := h.c.Analyze(context.Background(), trigger())
	require.Error(t, err)
	assert.ErrorIs(t, err, h.records.err)
	assert.Zero(t, h.classifier.calls)
}

func TestAnalyze_MissingID(t *testing.T) {
	h := newHarness(3, detected)
	_, err := h.c.Analyze(context.Background(), model.SummaryEvent{})
	assert.ErrorIs(t, err, ErrMissingID)
}

// ---------------------------------------------------------------
// ParseAnalysis
// ---------------------------------------------------------------

func TestParseAnalysis(t *testing.T) {
	full := `{"patterns_detected": true, "pattern_description": "x", "affected_clients": ["a"], "recommended_actions": ["b"], "escalation_needed": false, "confidence": "medium"}`

	cases := []struct {
		name    string
		in      string
		wantErr bool
		conf    model.Confidence
	}{
		{"bare", full, false, model.ConfidenceMedium},
		{"json fence", "```json\n" + full + "\n```", false, model.ConfidenceMedium},
		{"plain fence", "```\n" + full + "\n```", false, model.ConfidenceMedium},
		{"surrounding whitespace", "\n\n  " + full + "  \n", false, model.ConfidenceMedium},
		{"missing required key", `{"patterns_detected": true}`, true, ""},
		{"wrong type", strings.Replace(full, `"escalation_needed": false`, `"escalation_needed": "no"`, 1), true, ""},
		{"not json", "nope", true, ""},
		{"odd confidence", strings.Replace(full, "medium", "VERY", 1), false, model.ConfidenceUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := ParseAnalysis(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.conf, a.Confidence)
			assert.True(t, a.PatternsDetected)
		})
	}
}

// ---------------------------------------------------------------
// Bedrock
// ---------------------------------------------------------------

type fakeInvoke struct {
	in   *bedrockruntime.InvokeModelInput
	body string
	err  error
}

func (f *fakeInvoke) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrock_RequestShapeAndText(t *testing.T) {
	fake := &fakeInvoke{body: `{"content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn"}`}
	b := NewBedrock(fake, "anthropic.claude-3-sonnet")

	text, err := b.Classify(context.Background(), "prompt body")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	assert.Equal(t, "anthropic.claude-3-sonnet", aws.ToString(fake.in.ModelId))
	assert.Equal(t, "application/json", aws.ToString(fake.in.ContentType))

	var req messagesRequest
	require.NoError(t, json.Unmarshal(fake.in.Body, &req))
	assert.Equal(t, "bedrock-2023-05-31", req.AnthropicVersion)
	assert.Equal(t, 2000, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "prompt body", req.Messages[0].Content)
}

func TestBedrock_EmptyContentIsError(t *testing.T) {
	b := NewBedrock(&fakeInvoke{body: `{"content":[]}`}, "m")
	_, err := b.Classify(context.Background(), "p")
	assert.Error(t, err)
}

func TestBedrock_InvokeErrorPropagates(t *testing.T) {
	b := NewBedrock(&fakeInvoke{err: errors.New("AccessDeniedException")}, "m")
	_, err := b.Classify(context.Background(), "p")
	assert.ErrorContains(t, err, "AccessDeniedException")
}
