// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Common
//
// client(monitor) / central 프로세스가 공통으로 쓰는 값.
// 로거 초기화(logger.Init)가 이 값만 참조한다.
type Common struct {
	AWSRegion   string // AWS 리전 (예: us-east-1)
	Environment string // 배포 stage (dev / prod ...)

	ServiceName string // 로그 공통 필드 "service"
	InstanceID  string // 프로세스 고유 ID (호스트명 기반, 실패 시 랜덤 hex)

	LogLevel   string // debug / info / warn / error
	LogPretty  bool   // true: ConsoleWriter, false: JSON
	LogSampleN uint32 // >1 이면 debug/info 를 1/N 샘플링
}

// MonitorConfig
//
// client 계정에서 동작하는 investigation monitor 설정.
// 프로세스 시작 시 한 번 만들어져 각 컴포넌트 생성자에 주입되며,
// 이후 변경되지 않는다. 컴포넌트는 환경변수를 직접 읽지 않는다.
type MonitorConfig struct {
	Common

	// ---------------------------
	// client 식별
	// ---------------------------

	ClientName      string
	ClientAccountID string
	Tags            map[string]string // TAGS (YAML/JSON mapping, 문자열 → 문자열)

	// ---------------------------
	// 외부 협력자
	// ---------------------------

	CentralEventBusARN string // central 계정 EventBridge bus
	StateParameterName string // SSM watermark parameter 이름
	LogGroup           string // DevOps Agent investigation 로그 그룹
	AgentSpaceID       string // DevOps Agent space (링크 생성용)
	AgentRegion        string

	// ---------------------------
	// 스케줄
	// ---------------------------

	PollInterval time.Duration // monitor loop 주기 (--once 가 아니면)

	// ---------------------------
	// S3 archive (ARCHIVE_BUCKET 비어있으면 비활성)
	// ---------------------------
	// SDK 는 단일 시도, 시도 횟수는 S3AppRetries 만 사용한다.

	ArchiveBucket string
	ArchivePrefix string
	S3Timeout     time.Duration
	S3AppRetries  int
}

// ArchiveEnabled 는 S3 archive 를 쓸지 여부.
func (c MonitorConfig) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// CentralConfig
//
// central 계정의 routing / correlation 서버 설정.
type CentralConfig struct {
	Common

	HTTPAddr    string // 예: ":8080"
	MaxBodySize int64  // 요청 body 최대 크기 (이벤트 상한 256KB 보다 커야 함)

	InvestigationsTable string // DynamoDB table
	AlertTopicARN       string // SNS broadcast topic
	ModelID             string // Bedrock model id

	PagerDutySecret string // Secrets Manager 이름, 비어 있으면 paging skip
	JiraSecret      string // Secrets Manager 이름, 비어 있으면 ticket skip

	NotifyTimeout time.Duration // paging / ticketing HTTP 호출 timeout
}

const (
	DefaultLogGroup     = "/aws/devops-agent/investigations"
	DefaultPollInterval = 5 * time.Minute
)

// LoadDotEnv 는 .env 파일이 있으면 먼저 환경변수로 올린다.
// 이미 설정된 환경변수는 덮어쓰지 않는다.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env", "/app/.env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadMonitor 는 프로세스 환경변수로 MonitorConfig 를 만든다.
func LoadMonitor() (MonitorConfig, error) {
	return MonitorFromLookup(os.Getenv)
}

// LoadCentral 는 프로세스 환경변수로 CentralConfig 를 만든다.
func LoadCentral() (CentralConfig, error) {
	return CentralFromLookup(os.Getenv)
}

// MonitorFromLookup
//
// 필수 값이 빠졌거나 형식이 잘못되면 모든 문제를 모아 하나의 error 로 돌려준다.
// (fail-fast 는 main 에서 처리)
func MonitorFromLookup(getenv func(string) string) (MonitorConfig, error) {
	e := &env{getenv: getenv}

	cfg := MonitorConfig{
		Common: e.common("investigation-monitor"),

		ClientName:      e.must("CLIENT_NAME"),
		ClientAccountID: e.must("CLIENT_ACCOUNT_ID"),

		CentralEventBusARN: e.must("CENTRAL_EVENT_BUS_ARN"),
		StateParameterName: e.must("STATE_PARAMETER_NAME"),
		LogGroup:           e.or("INVESTIGATION_LOG_GROUP", DefaultLogGroup),
		AgentSpaceID:       e.or("DEVOPS_AGENT_SPACE_ID", ""),
		AgentRegion:        e.or("DEVOPS_AGENT_REGION", "us-east-1"),

		PollInterval: e.dur("POLL_INTERVAL", DefaultPollInterval),

		ArchiveBucket: e.or("ARCHIVE_BUCKET", ""),
		ArchivePrefix: e.or("ARCHIVE_PREFIX", "investigations"),
		S3Timeout:     e.dur("S3_TIMEOUT", 5*time.Second),
		S3AppRetries:  e.int("S3_APP_RETRIES", 1),
	}

	tags, err := ParseTags(e.or("TAGS", ""))
	if err != nil {
		e.errs = append(e.errs, err)
	}
	cfg.Tags = tags

	return cfg, e.err()
}

// CentralFromLookup 는 MonitorFromLookup 과 동일한 규칙으로 CentralConfig 를 만든다.
func CentralFromLookup(getenv func(string) string) (CentralConfig, error) {
	e := &env{getenv: getenv}

	cfg := CentralConfig{
		Common: e.common("investigation-central"),

		HTTPAddr:    e.or("HTTP_ADDR", ":8080"),
		MaxBodySize: e.int64("MAX_BODY_SIZE", 512*1024),

		InvestigationsTable: e.must("INVESTIGATIONS_TABLE"),
		AlertTopicARN:       e.must("ALERT_TOPIC_ARN"),
		ModelID:             e.must("BEDROCK_MODEL_ID"),

		PagerDutySecret: e.or("PAGERDUTY_API_KEY_SECRET", ""),
		JiraSecret:      e.or("JIRA_API_KEY_SECRET", ""),

		NotifyTimeout: e.dur("NOTIFY_TIMEOUT", 10*time.Second),
	}

	return cfg, e.err()
}

// ParseTags
//
// TAGS 는 문자열 → 문자열 mapping 이다. JSON 객체(`{"team":"core"}`)와
// YAML mapping(`team: core`) 둘 다 허용한다. 값은 절대 코드로 평가하지 않으며,
// mapping 이 아닌 입력은 에러로 처리한다.
func ParseTags(raw string) (map[string]string, error) {
	tags := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return tags, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("invalid TAGS: %w", err)
	}
	if len(node.Content) == 0 {
		return tags, nil
	}
	if node.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("invalid TAGS: expected a key/value mapping")
	}
	if err := node.Content[0].Decode(&tags); err != nil {
		return nil, fmt.Errorf("invalid TAGS: %w", err)
	}
	return tags, nil
}

// env
//
// 환경변수 lookup + 에러 수집기.
// must* 는 값이 없으면 에러를 쌓고, or/dur/int 는 값이 없을 때 기본값을 쓴다.
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) common(service string) Common {
	return Common{
		AWSRegion:   e.must("AWS_REGION"),
		Environment: e.or("ENVIRONMENT", "dev"),
		ServiceName: e.or("SERVICE_NAME", service),
		InstanceID:  fallbackInstanceID(),
		LogLevel:    e.or("LOG_LEVEL", "info"),
		LogPretty:   e.bool("LOG_PRETTY", false),
		LogSampleN:  e.uint32("LOG_SAMPLE_N", 0),
	}
}

func (e *env) must(key string) string {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("missing required env: %s", key))
	}
	return v
}

func (e *env) or(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.or(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid int env %s=%q: %w", key, v, err))
		return def
	}
	return n
}

// uint32 는 음수나 범위 밖 값을 에러로 쌓는다 (uint32 변환 시 wrap 방지).
func (e *env) uint32(key string, def uint32) uint32 {
	v := e.or(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid non-negative int env %s=%q: %w", key, v, err))
		return def
	}
	return uint32(n)
}

func (e *env) int64(key string, def int64) int64 {
	v := e.or(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid int64 env %s=%q: %w", key, v, err))
		return def
	}
	return n
}

func (e *env) dur(key string, def time.Duration) time.Duration {
	v := e.or(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid duration env %s=%q: %w", key, v, err))
		return def
	}
	return d
}

func (e *env) bool(key string, def bool) bool {
	v := e.or(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid bool env %s=%q: %w", key, v, err))
		return def
	}
	return b
}

func (e *env) err() error {
	return errors.Join(e.errs...)
}

// fallbackInstanceID
//
// 프로세스를 식별하는 고유 값.
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
