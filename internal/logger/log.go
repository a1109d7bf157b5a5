// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"invtriage/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 프로세스 시작 시 한 번만 호출하는 로거 초기화 함수.
// monitor / central 모두 같은 규칙을 쓴다.
//
//  1. 로그 포맷:
//     - LOG_PRETTY=true : ConsoleWriter (로컬 개발)
//     - LOG_PRETTY=false: JSON (CloudWatch Logs Insights 검색용)
//
//  2. 공통 필드: 모든 로그에 "service", "instance" 가 붙는다.
//
//  3. 샘플링: Debug/Info 는 LOG_SAMPLE_N 중 1건만 남긴다.
//     Warn/Error 는 절대 버리지 않는다. (delivery 실패, 알림 실패 추적용)
func Init(cfg config.Common) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stdout
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Str("environment", cfg.Environment).
		Logger()

	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	zlog.Logger = logger

	// AWS SDK 등 표준 log 패키지를 쓰는 코드도 zerolog 로 흘려보낸다.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
