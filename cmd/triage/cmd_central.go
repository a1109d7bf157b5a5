package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"invtriage/internal/config"
	"invtriage/internal/correlator"
	"invtriage/internal/logger"
	"invtriage/internal/metrics"
	"invtriage/internal/notify"
	"invtriage/internal/router"
	"invtriage/internal/server"
	"invtriage/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var centralCmd = &cobra.Command{
	Use:   "central",
	Short: "Serve severity routing and pattern correlation for the central bus",
	Long: `central 계정 HTTP 서버. EventBridge API destination / ALB 가 이벤트 envelope 를 POST 한다.

  POST /route      severity routing (store + page/ticket/broadcast)
  POST /correlate  최근 24시간 cross-client pattern 분석
  POST /events     둘 다 실행
  GET  /metrics    Prometheus
  GET  /health     health check`,
	RunE: runCentral,
}

func runCentral(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadCentral()
	if err != nil {
		return fmt.Errorf("central config: %w", err)
	}
	logger.Init(cfg.Common)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New()
	h, err := buildCentral(ctx, cfg, m)
	if err != nil {
		return err
	}

	// ReadTimeout 은 짧게, WriteTimeout 은 notify + classifier 호출 시간을 감안한다.
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      h.Mux(),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ECS scale-in / rolling update: SIGTERM → 진행 중 요청 마무리 후 종료
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received")

		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("central server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server terminated: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func buildCentral(ctx context.Context, cfg config.CentralConfig, m *metrics.Metrics) (*server.Handler, error) {
	awsCfg, err := loadAWS(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	records := store.New(dynamodb.NewFromConfig(awsCfg), cfg.InvestigationsTable)
	secrets := secretsmanager.NewFromConfig(awsCfg)
	broadcaster := notify.NewBroadcaster(sns.NewFromConfig(awsCfg), cfg.AlertTopicARN)

	rt := router.New(
		records,
		notify.NewPagerDuty(secrets, cfg.PagerDutySecret, cfg.NotifyTimeout),
		notify.NewJira(secrets, cfg.JiraSecret, cfg.NotifyTimeout),
		broadcaster,
		cfg.Environment,
		m,
	)
	cr := correlator.New(
		records,
		correlator.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID),
		broadcaster,
		m,
	)

	if cfg.PagerDutySecret == "" {
		log.Warn().Msg("PAGERDUTY_API_KEY_SECRET not set: paging will be skipped")
	}
	if cfg.JiraSecret == "" {
		log.Warn().Msg("JIRA_API_KEY_SECRET not set: ticketing will be skipped")
	}

	return server.NewHandler(cfg, m, rt, cr), nil
}
