package summarize

import (
	"regexp"
	"sort"
	"strings"
)

// MaxRootCauseChars 는 root_cause_brief 의 최대 길이(문자 수)이다.
const MaxRootCauseChars = 200

// redaction 은 아래 순서대로, 앞 단계의 치환 결과 위에 다시 적용된다.
var redactions = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "REDACTED_IP"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "REDACTED_EMAIL"},
	{regexp.MustCompile(`(?i)(password|secret|key|token)[\s:=]+[^\s]+`), "${1}: REDACTED"},
}

// Redact 는 IP, email, secret 값을 placeholder 로 치환한다.
func Redact(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.repl)
	}
	return text
}

// TruncateRunes 는 text 를 최대 n 문자(rune)로 자른다.
func TruncateRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}

// BriefRootCause 는 200자로 자른 "뒤에" redaction 한다.
// 경계에 걸친 secret 은 일부만 치환될 수 있다. (DESIGN.md 참고)
func BriefRootCause(rootCause string) string {
	return Redact(TruncateRunes(rootCause, MaxRootCauseChars))
}

// ResourceTypes
//
// ARN(arn:partition:service:region:account:resource) 의 service 부분을
// 대문자로 모은다. 형식이 맞지 않는 식별자는 조용히 제외한다.
// 결과는 중복 제거 후 정렬한다.
func ResourceTypes(resources []string) []string {
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if !strings.HasPrefix(r, "arn:") {
			continue
		}
		parts := strings.Split(r, ":")
		if len(parts) < 6 || parts[2] == "" {
			continue
		}
		seen[strings.ToUpper(parts[2])] = struct{}{}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
