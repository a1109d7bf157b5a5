package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"invtriage/internal/archive"
	"invtriage/internal/config"
	"invtriage/internal/logger"
	"invtriage/internal/metrics"
	"invtriage/internal/monitor"
	"invtriage/internal/poller"
	"invtriage/internal/relay"
	"invtriage/internal/state"
	"invtriage/internal/summarize"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	monitorOnce     bool
	monitorInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll completed investigations and forward summaries to the central bus",
	Long: `client 계정에서 watermark 이후 완료된 investigation 을 읽어 요약 이벤트로 만들고
central EventBridge bus 로 전송한다.

--once 면 cycle 하나만 돌고 종료한다 (외부 scheduler 에서 호출할 때).
그렇지 않으면 --interval (기본 POLL_INTERVAL) 마다 반복한다.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single poll cycle and exit")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "poll interval (default POLL_INTERVAL or 5m)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadMonitor()
	if err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}
	logger.Init(cfg.Common)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mon, err := buildMonitor(ctx, cfg, metrics.New())
	if err != nil {
		return err
	}

	if monitorOnce {
		res, err := mon.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Str("message", res.Message).
			Int("processed", res.Processed).
			Msg("monitor run complete")
		return nil
	}

	interval := monitorInterval
	if interval <= 0 {
		interval = cfg.PollInterval
	}
	log.Info().Dur("interval", interval).Str("client", cfg.ClientName).Msg("investigation monitor started")
	err = mon.Run(ctx, interval)
	log.Info().Msg("shutdown complete")
	return err
}

// buildMonitor 는 설정으로 협력자를 만들고 Monitor 에 주입한다.
func buildMonitor(ctx context.Context, cfg config.MonitorConfig, m *metrics.Metrics) (*monitor.Monitor, error) {
	awsCfg, err := loadAWS(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	watermarks := state.NewWatermarkStore(ssm.NewFromConfig(awsCfg), cfg.StateParameterName, cfg.ClientName)
	source := poller.New(cloudwatchlogs.NewFromConfig(awsCfg), cfg.LogGroup, m)
	formatter := summarize.New(summarize.Source{
		ClientName:      cfg.ClientName,
		ClientAccountID: cfg.ClientAccountID,
		Tags:            cfg.Tags,
		AgentSpaceID:    cfg.AgentSpaceID,
		Region:          cfg.AgentRegion,
		LogGroup:        cfg.LogGroup,
	})
	bus := relay.NewPublisher(eventbridge.NewFromConfig(awsCfg), cfg.CentralEventBusARN)

	mon := monitor.New(cfg.ClientName, watermarks, source, formatter, bus, m)

	if cfg.ArchiveEnabled() {
		uploader := archive.NewS3Uploader(newS3Client(awsCfg), cfg.ArchiveBucket, cfg.S3Timeout, cfg.S3AppRetries, m)
		mon.WithArchive(archive.NewArchiver(uploader, cfg.ArchivePrefix, cfg.ClientName, m))
		log.Info().Str("bucket", cfg.ArchiveBucket).Str("prefix", cfg.ArchivePrefix).Msg("S3 archive enabled")
	}
	return mon, nil
}
