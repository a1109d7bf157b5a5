package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"invtriage/internal/config"
	"invtriage/internal/correlator"
	"invtriage/internal/metrics"
	"invtriage/internal/model"
	"invtriage/internal/pool"
	"invtriage/internal/router"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Router / Correlator 는 central 의 두 처리 경로.
type (
	Router interface {
		Route(ctx context.Context, ev model.SummaryEvent) (router.Result, error)
	}
	Correlator interface {
		Analyze(ctx context.Context, ev model.SummaryEvent) (correlator.Result, error)
	}
)

type Handler struct {
	cfg        config.CentralConfig
	metrics    *metrics.Metrics
	router     Router
	correlator Correlator
}

func NewHandler(cfg config.CentralConfig, m *metrics.Metrics, r Router, c Correlator) *Handler {
	return &Handler{
		cfg:        cfg,
		metrics:    m,
		router:     r,
		correlator: c,
	}
}

// Mux 는 central 엔드포인트를 등록한 handler 를 돌려준다.
//
//   - POST /route     : deterministic routing
//   - POST /correlate : pattern correlation
//   - POST /events    : 둘 다 (bus target 하나로 연결할 때)
//   - GET  /metrics   : Prometheus
//   - GET  /health    : ALB / ECS health check
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/route", h.HandleRoute)
	mux.HandleFunc("/correlate", h.HandleCorrelate)
	mux.HandleFunc("/events", h.HandleEvents)
	mux.Handle("/metrics", h.metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleRoute
//
// 응답 코드:
//   - 200: 저장 완료 (채널 실패 포함, outcomes 로 확인)
//   - 400: body 가 envelope 가 아니거나 investigation_id 없음
//   - 500: store 쓰기 실패 → bus target 이 재시도한다
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.readEvent(w, r)
	if !ok {
		return
	}
	res, err := h.router.Route(r.Context(), ev)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusOK, res)
}

// HandleCorrelate: store 조회 실패만 500. classifier 실패는 200 + analysis.error.
func (h *Handler) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.readEvent(w, r)
	if !ok {
		return
	}
	res, err := h.correlator.Analyze(r.Context(), ev)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusOK, res)
}

type eventsResponse struct {
	Route     *router.Result     `json:"route,omitempty"`
	Correlate *correlator.Result `json:"correlate,omitempty"`
}

// HandleEvents
//
// routing 과 correlation 을 동시에 실행한다. 서로 독립이라 한쪽 실패가
// 다른 쪽을 취소하지 않는다.
//
// 응답 status 는 routing 결과만 따른다. 500 이면 bus 가 이벤트 전체를 재전송하므로
// routing 이 이미 끝난 뒤 correlation 실패로 500 을 주면 ticket / alert 가 중복된다.
// correlation 실패는 로그와 correlate.analysis.error 로만 남긴다.
//
// correlation 은 이번 이벤트의 persist 와 경쟁하므로 방금 들어온 record 가
// 조회 결과에 포함되지 않을 수 있다.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.readEvent(w, r)
	if !ok {
		return
	}

	var (
		g    errgroup.Group
		resp eventsResponse
	)
	g.Go(func() error {
		res, err := h.router.Route(r.Context(), ev)
		if err != nil {
			return err
		}
		resp.Route = &res
		return nil
	})
	g.Go(func() error {
		res, err := h.correlator.Analyze(r.Context(), ev)
		if err != nil {
			log.Error().Err(err).
				Str("investigation_id", ev.InvestigationID).
				Msg("correlation failed, routing result unaffected")
			res = correlator.Result{
				InvestigationID: ev.InvestigationID,
				Message:         "Pattern analysis failed",
				Analysis:        model.PatternAnalysis{PatternsDetected: false, Error: err.Error()},
			}
		}
		resp.Correlate = &res
		return nil
	})

	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusOK, resp)
}

// readEvent
//
//  1. POST 만 허용
//  2. 요청 길이 제한(MaxBodySize)
//  3. BodyPool 버퍼로 읽고 envelope decode
//  4. investigation_id 없으면 400
func (h *Handler) readEvent(w http.ResponseWriter, r *http.Request) (model.SummaryEvent, bool) {
	if r.Method != http.MethodPost {
		h.status(w, r, http.StatusMethodNotAllowed)
		return model.SummaryEvent{}, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	defer r.Body.Close()

	buf := pool.BodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBody(buf, h.cfg.MaxBodySize*2)

	if _, err := io.Copy(buf, r.Body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.status(w, r, http.StatusRequestEntityTooLarge)
		} else {
			h.status(w, r, http.StatusBadRequest)
		}
		return model.SummaryEvent{}, false
	}

	var env model.BusEnvelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		h.replyError(w, r, http.StatusBadRequest, "invalid event body")
		return model.SummaryEvent{}, false
	}
	if env.Detail.InvestigationID == "" {
		h.replyError(w, r, http.StatusBadRequest, router.ErrMissingID.Error())
		return model.SummaryEvent{}, false
	}
	return env.Detail, true
}

// fail 은 처리 에러를 status 로 바꾼다. id 누락은 400, 나머지는 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, router.ErrMissingID) || errors.Is(err, correlator.ErrMissingID) {
		h.replyError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).
		Str("path", r.URL.Path).
		Str("caller", callerIP(r)).
		Msg("event processing failed")
	h.replyError(w, r, http.StatusInternalServerError, err.Error())
}

func (h *Handler) replyError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	h.reply(w, r, code, map[string]string{"error": msg})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, code int) {
	h.metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(code)).Inc()
	w.WriteHeader(code)
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, code int, v any) {
	h.metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("write response")
	}
}
