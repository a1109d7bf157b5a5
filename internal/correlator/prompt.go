// internal/correlator/prompt.go
package correlator

import (
	"strings"

	"invtriage/internal/model"

	json "github.com/goccy/go-json"
)

// promptRecord 는 record 에서 classifier 에 넘기는 필드만 뽑은 것.
// root cause 원문이나 링크는 넘기지 않는다.
type promptRecord struct {
	Client            string         `json:"client"`
	Severity          model.Severity `json:"severity"`
	RootCauseCategory model.Category `json:"root_cause_category"`
	ResourceTypes     []string       `json:"resource_types"`
	Timestamp         string         `json:"timestamp"`
}

const promptHeader = `You are a senior cloud engineer analyzing incidents across multiple clients.

Recent investigations (last 24 hours):
`

const promptTasks = `

Tasks:
1. Identify if multiple clients are affected by the same underlying issue
2. Detect common patterns in root causes
3. Assess if this indicates a broader AWS service issue or regional problem
4. Provide actionable recommendations

Respond in JSON format:
{
    "patterns_detected": boolean,
    "pattern_description": "string",
    "affected_clients": ["list of client names"],
    "recommended_actions": ["list of actions"],
    "escalation_needed": boolean,
    "confidence": "HIGH|MEDIUM|LOW"
}`

// BuildPrompt 는 record 목록으로 분석 prompt 를 만든다.
func BuildPrompt(recs []model.StoredInvestigation) (string, error) {
	rows := make([]promptRecord, 0, len(recs))
	for _, r := range recs {
		types := r.Summary.ResourceTypes
		if types == nil {
			types = []string{}
		}
		rows = append(rows, promptRecord{
			Client:            r.ClientName,
			Severity:          r.Severity,
			RootCauseCategory: r.Summary.RootCauseCategory,
			ResourceTypes:     types,
			Timestamp:         r.Timestamp,
		})
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.Write(data)
	b.WriteString(promptTasks)
	return b.String(), nil
}
