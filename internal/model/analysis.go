// internal/model/analysis.go
package model

// Confidence 는 classifier 가 돌려준 신뢰도이다.
type Confidence string

const (
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceUnknown Confidence = "UNKNOWN"
)

// PatternAnalysis
// ------------------------------------------------------------
// correlation pass 한 번의 결과. 저장하지 않고 escalation 판단 후 버린다.
//
// Error 는 classifier 호출/파싱 실패 시에만 채워진다.
// 이 경우 PatternsDetected 는 항상 false 이다.
type PatternAnalysis struct {
	PatternsDetected   bool       `json:"patterns_detected"`
	PatternDescription string     `json:"pattern_description"`
	AffectedClients    []string   `json:"affected_clients"`
	RecommendedActions []string   `json:"recommended_actions"`
	EscalationNeeded   bool       `json:"escalation_needed"`
	Confidence         Confidence `json:"confidence"`
	Error              string     `json:"error,omitempty"`
}
