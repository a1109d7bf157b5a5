package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"
	"invtriage/internal/notify"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	recs []model.StoredInvestigation
	err  error
}

func (f *fakeStore) Put(_ context.Context, rec model.StoredInvestigation) error {
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, rec)
	return nil
}

// fakeNotifier 는 정해진 status 를 돌려주고 호출 순서를 log 에 남긴다.
type fakeNotifier struct {
	ch     notify.Channel
	status notify.Status
	log    *[]notify.Channel
}

func (f *fakeNotifier) Channel() notify.Channel { return f.ch }

func (f *fakeNotifier) Notify(context.Context, model.SummaryEvent) notify.Outcome {
	*f.log = append(*f.log, f.ch)
	out := notify.Outcome{Channel: f.ch, Status: f.status}
	if f.status == notify.StatusFailed {
		out.Reason = "boom"
	}
	return out
}

var fixed = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

type harness struct {
	store   *fakeStore
	calls   []notify.Channel
	router  *Router
	metrics *metrics.Metrics
}

func newHarness(status notify.Status) *harness {
	h := &harness{store: &fakeStore{}, metrics: metrics.New()}
	mk := func(c notify.Channel) notify.Notifier {
		return &fakeNotifier{ch: c, status: status, log: &h.calls}
	}
	h.router = New(h.store,
		mk(notify.ChannelPage), mk(notify.ChannelTicket), mk(notify.ChannelBroadcast),
		"prod", h.metrics).WithClock(func() time.Time { return fixed })
	return h
}

func event(sev model.Severity) model.SummaryEvent {
	return model.SummaryEvent{
		InvestigationID: "inv-1",
		ClientAccountID: "111122223333",
		ClientName:      "Acme",
		Timestamp:       "2024-05-01T12:00:00.000000Z",
		Severity:        sev,
	}
}

func channels(outs []notify.Outcome) []notify.Channel {
	var cs []notify.Channel
	for _, o := range outs {
		cs = append(cs, o.Channel)
	}
	return cs
}

func TestRoute_TiersBySeverity(t *testing.T) {
	cases := []struct {
		sev  model.Severity
		tier Tier
		want []notify.Channel
	}{
		{model.SeverityCritical, TierPage, []notify.Channel{notify.ChannelPage, notify.ChannelTicket, notify.ChannelBroadcast}},
		{model.SeverityHigh, TierPage, []notify.Channel{notify.ChannelPage, notify.ChannelTicket, notify.ChannelBroadcast}},
		{model.SeverityMedium, TierTicket, []notify.Channel{notify.ChannelTicket}},
		{"", TierTicket, []notify.Channel{notify.ChannelTicket}},
		{model.SeverityLow, TierStore, nil},
		{"INFO", TierStore, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.sev), func(t *testing.T) {
			h := newHarness(notify.StatusSent)
			res, err := h.router.Route(context.Background(), event(tc.sev))
			require.NoError(t, err)

			assert.Equal(t, tc.tier, res.Tier)
			assert.Equal(t, tc.want, channels(res.Outcomes))
			assert.Equal(t, tc.want, h.calls)
			require.Len(t, h.store.recs, 1)
		})
	}
}

func TestRoute_StoredRecordCarriesProcessingFields(t *testing.T) {
	h := newHarness(notify.StatusSent)
	_, err := h.router.Route(context.Background(), event(model.SeverityLow))
	require.NoError(t, err)

	rec := h.store.recs[0]
	assert.Equal(t, "2024-05-01T12:30:00.000000Z", rec.ProcessedAt)
	assert.Equal(t, "prod", rec.Environment)
	assert.Equal(t, "inv-1", rec.InvestigationID)
}

func TestRoute_HighSeverityPersistsEvenWhenEveryChannelFails(t *testing.T) {
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh} {
		h := newHarness(notify.StatusFailed)
		res, err := h.router.Route(context.Background(), event(sev))
		require.NoError(t, err)

		require.Len(t, h.store.recs, 1)
		require.Len(t, res.Outcomes, 3)
		for _, o := range res.Outcomes {
			assert.Equal(t, notify.StatusFailed, o.Status)
		}
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.NotificationsTotal.WithLabelValues("page", "failed")))
	}
}

func TestRoute_PersistFailureFailsEventWithoutNotifying(t *testing.T) {
	h := newHarness(notify.StatusSent)
	h.store.err = errors.New("ConditionalCheckFailed")

	_, err := h.router.Route(context.Background(), event(model.SeverityCritical))
	require.Error(t, err)
	assert.ErrorIs(t, err, h.store.err)
	assert.Empty(t, h.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PersistErrorsTotal))
}

func TestRoute_MissingIDIsRejected(t *testing.T) {
	h := newHarness(notify.StatusSent)
	ev := event(model.SeverityHigh)
	ev.InvestigationID = ""

	_, err := h.router.Route(context.Background(), ev)
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Empty(t, h.store.recs)
}

func TestRoute_UnwiredChannelIsSkipped(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, nil, nil, "dev", metrics.New())

	res, err := r.Route(context.Background(), event(model.SeverityHigh))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	for _, o := range res.Outcomes {
		assert.Equal(t, notify.StatusSkipped, o.Status)
	}
}

func TestRoute_RoutedCounterByTier(t *testing.T) {
	h := newHarness(notify.StatusSent)
	ctx := context.Background()
	_, _ = h.router.Route(ctx, event(model.SeverityHigh))
	_, _ = h.router.Route(ctx, event(model.SeverityMedium))
	_, _ = h.router.Route(ctx, event(model.SeverityMedium))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsRoutedTotal.WithLabelValues("page")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.EventsRoutedTotal.WithLabelValues("ticket")))
}
