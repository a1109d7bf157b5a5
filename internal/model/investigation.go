// internal/model/investigation.go
package model

import (
	"strings"
	"time"
)

// Severity 는 investigation source 가 부여한 심각도이다.
// CRITICAL|HIGH|MEDIUM|LOW 외의 값도 그대로 보존한다 (router 에서 "other" 취급).
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// ParseSeverity 는 로그 본문의 severity 문자열을 정규화한다.
// 값이 비어 있으면 MEDIUM 으로 간주한다.
func ParseSeverity(s string) Severity {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return SeverityMedium
	}
	return Severity(s)
}

// Investigation
// ------------------------------------------------------------
// 외부 investigation source(DevOps Agent 로그)에서 읽어온 원본 레코드.
// 이 시스템에서는 읽기 전용이며 절대 수정하지 않는다.
// Poller → Summarizer 로만 전달된다.
type Investigation struct {
	ID                string
	Severity          Severity
	RootCause         string
	AffectedResources []string  // source 가 준 순서 그대로 유지
	CompletedAt       time.Time // 로그 이벤트 timestamp (UTC)
	DurationMinutes   int
}

// TimeLayout 은 watermark 와 이벤트 timestamp 에 공통으로 쓰는 포맷이다.
// 고정 폭(마이크로초, UTC 'Z')이라 문자열 비교 = 시간 비교가 성립한다.
// DynamoDB scan 의 `timestamp >= cutoff` 필터가 이 성질에 의존한다.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime 은 t 를 UTC TimeLayout 문자열로 만든다.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime 은 TimeLayout, RFC3339(Nano) 및 zone 없는 ISO-8601
// (예: "2024-05-01T10:00:00.123456") 을 모두 받아들인다.
// zone 이 없으면 UTC 로 해석한다.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		TimeLayout,
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
	}
	var lastErr error
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
