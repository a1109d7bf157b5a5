// internal/correlator/parse.go
package correlator

import (
	"errors"
	"fmt"
	"strings"

	"invtriage/internal/model"

	json "github.com/goccy/go-json"
)

// ErrUnparseable 는 classifier 응답이 고정 JSON 형태가 아닐 때.
var ErrUnparseable = errors.New("failed to parse classifier response")

// 응답에 반드시 있어야 하는 key. confidence 는 없으면 UNKNOWN.
var requiredKeys = []string{
	"patterns_detected",
	"pattern_description",
	"affected_clients",
	"recommended_actions",
	"escalation_needed",
}

// ParseAnalysis
//
// 앞뒤 code fence(```json / ```)를 벗기고 PatternAnalysis 로 decode 한다.
// 필수 key 가 빠졌거나 타입이 맞지 않으면 ErrUnparseable.
func ParseAnalysis(text string) (model.PatternAnalysis, error) {
	cleaned := stripFence(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return model.PatternAnalysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			return model.PatternAnalysis{}, fmt.Errorf("%w: missing %q", ErrUnparseable, k)
		}
	}

	var a model.PatternAnalysis
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return model.PatternAnalysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	a.Error = ""
	a.Confidence = normalizeConfidence(a.Confidence)
	return a, nil
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeConfidence(c model.Confidence) model.Confidence {
	switch model.Confidence(strings.ToUpper(string(c))) {
	case model.ConfidenceHigh:
		return model.ConfidenceHigh
	case model.ConfidenceMedium:
		return model.ConfidenceMedium
	case model.ConfidenceLow:
		return model.ConfidenceLow
	default:
		return model.ConfidenceUnknown
	}
}
