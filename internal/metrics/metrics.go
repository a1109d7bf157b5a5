package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invtriage"

// Metrics 는 monitor / central 상태를 나타내는 카운터 모음이다.
// 프로세스마다 자체 Registry 를 가지므로 테스트에서 여러 개 만들어도 충돌하지 않는다.
type Metrics struct {
	Registry *prometheus.Registry

	// ======================
	// monitor (client 계정)
	// ======================

	// PollCyclesTotal
	// - poll cycle 실행 횟수. result=ok|no_new|failed
	// - failed 가 계속 증가하면 CloudWatch Logs / SSM 접근 문제.
	PollCyclesTotal *prometheus.CounterVec

	// InvestigationsPolledTotal
	// - source 에서 읽어온 COMPLETED investigation 수 (watermark 이후).
	InvestigationsPolledTotal prometheus.Counter

	// MalformedRecordsTotal
	// - JSON 으로 파싱하지 못해 건너뛴 로그 레코드 수.
	MalformedRecordsTotal prometheus.Counter

	// EventsForwardedTotal
	// - central bus 에 PutEvents 성공한 이벤트 수.
	EventsForwardedTotal prometheus.Counter

	// EventsDroppedTotal
	// - 포맷/크기 검증에 실패해 이번 cycle 에서 버린 investigation 수.
	EventsDroppedTotal prometheus.Counter

	// DeliveryFailuresTotal
	// - bus 가 failed entry 를 돌려줬거나 transport 에러가 난 횟수.
	// - 이 값이 증가하면 watermark 가 뒤처지고 다음 cycle 에 재전송된다.
	DeliveryFailuresTotal prometheus.Counter

	// WatermarkAdvancesTotal
	// - watermark 를 실제로 갱신한 횟수.
	WatermarkAdvancesTotal prometheus.Counter

	// ArchiveEventsStoredTotal / S3PutErrorsTotal
	// - S3 archive 에 저장된 이벤트 수 / PutObject 실패 시도(attempt) 수.
	ArchiveEventsStoredTotal prometheus.Counter
	S3PutErrorsTotal         prometheus.Counter

	// ======================
	// central
	// ======================

	// HTTPRequestsTotal
	// - 엔드포인트별 요청 수. code 는 응답 status.
	HTTPRequestsTotal *prometheus.CounterVec

	// EventsRoutedTotal
	// - router 가 처리 완료한 이벤트 수. tier=page|ticket|store
	EventsRoutedTotal *prometheus.CounterVec

	// PersistErrorsTotal
	// - investigation store 쓰기 실패. 이벤트 전체가 실패 처리된다.
	PersistErrorsTotal prometheus.Counter

	// NotificationsTotal
	// - 채널별 best-effort 알림 결과. status=sent|failed|skipped
	NotificationsTotal *prometheus.CounterVec

	// CorrelationPassesTotal
	// - correlator 실행 결과. result=insufficient|no_pattern|detected|degraded|failed
	CorrelationPassesTotal *prometheus.CounterVec

	// ClassifierCallsTotal
	// - 실제 classifier(Bedrock) 호출 수. insufficient 인 경우는 포함하지 않는다.
	ClassifierCallsTotal prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		PollCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "poll_cycles_total",
			Help: "Poll cycles executed, partitioned by result.",
		}, []string{"result"}),
		InvestigationsPolledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "investigations_polled_total",
			Help: "Completed investigations read from the investigation source.",
		}),
		MalformedRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "malformed_records_total",
			Help: "Log records skipped because their body was not valid JSON.",
		}),
		EventsForwardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_forwarded_total",
			Help: "Summary events accepted by the central event bus.",
		}),
		EventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dropped_total",
			Help: "Investigations dropped by summary validation.",
		}),
		DeliveryFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_failures_total",
			Help: "Summary events the event bus failed to accept.",
		}),
		WatermarkAdvancesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "watermark_advances_total",
			Help: "Watermark writes.",
		}),
		ArchiveEventsStoredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "archive_events_stored_total",
			Help: "Summary events written to the S3 archive.",
		}),
		S3PutErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "s3_put_errors_total",
			Help: "Failed S3 PutObject attempts.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Central HTTP requests by path and status code.",
		}, []string{"path", "code"}),
		EventsRoutedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_routed_total",
			Help: "Events routed by handling tier.",
		}, []string{"tier"}),
		PersistErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persist_errors_total",
			Help: "Investigation store write failures.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Best-effort notifications by channel and status.",
		}, []string{"channel", "status"}),
		CorrelationPassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "correlation_passes_total",
			Help: "Pattern correlation passes by result.",
		}, []string{"result"}),
		ClassifierCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "classifier_calls_total",
			Help: "Calls made to the pattern classifier.",
		}),
	}

	m.Registry.MustRegister(
		m.PollCyclesTotal,
		m.InvestigationsPolledTotal,
		m.MalformedRecordsTotal,
		m.EventsForwardedTotal,
		m.EventsDroppedTotal,
		m.DeliveryFailuresTotal,
		m.WatermarkAdvancesTotal,
		m.ArchiveEventsStoredTotal,
		m.S3PutErrorsTotal,
		m.HTTPRequestsTotal,
		m.EventsRoutedTotal,
		m.PersistErrorsTotal,
		m.NotificationsTotal,
		m.CorrelationPassesTotal,
		m.ClassifierCallsTotal,
	)
	return m
}

// Handler 는 /metrics 엔드포인트용 핸들러를 돌려준다.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
