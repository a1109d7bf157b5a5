package summarize

import (
	"strings"

	"invtriage/internal/model"
)

// categoryRule 은 (category, keywords) 한 쌍이다.
type categoryRule struct {
	category model.Category
	keywords []string
}

// categoryTable 은 위에서부터 순서대로 검사한다. 첫 번째로 매칭된 category 가 이긴다.
// 예: "connection denied" 는 permissions_issue 키워드도 포함하지만 network_connectivity.
var categoryTable = []categoryRule{
	{model.CategoryNetworkConnectivity, []string{"connection", "timeout", "network"}},
	{model.CategoryResourceExhaustion, []string{"memory", "cpu", "disk", "capacity"}},
	{model.CategoryPermissionsIssue, []string{"permission", "access", "denied", "unauthorized"}},
	{model.CategoryDeploymentIssue, []string{"deployment", "version", "rollout"}},
	{model.CategoryDependencyFailure, []string{"dependency", "service", "downstream"}},
}

// Categorize 는 root cause 텍스트를 대소문자 구분 없이 부분 문자열 검색으로 분류한다.
// 매칭되는 것이 없으면 unknown.
func Categorize(rootCause string) model.Category {
	lower := strings.ToLower(rootCause)
	for _, rule := range categoryTable {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryUnknown
}
