package summarize

import (
	"strings"
	"testing"

	"invtriage/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ip", "host 192.168.1.20 unreachable", "host REDACTED_IP unreachable"},
		{"email", "contact ops.team+oncall@example.co.uk now", "contact REDACTED_EMAIL now"},
		{"secret equals", "api_key=AKIA123 leaked", "api_key: REDACTED leaked"},
		{"token case insensitive", "TOKEN: xyz", "TOKEN: REDACTED"},
		{"all three", "db 10.1.2.3 user a@b.io secret s3cr3t", "db REDACTED_IP user REDACTED_EMAIL secret: REDACTED"},
		{"clean", "memory pressure on worker nodes", "memory pressure on worker nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.in))
		})
	}
}

func TestRedact_IdempotentOnCleanInput(t *testing.T) {
	inputs := []string{
		"",
		"Deployment v2 rolled out with bad config",
		"ünïcödé text without markers",
		"disk full on /var/lib/docker",
	}
	for _, in := range inputs {
		once := Redact(in)
		assert.Equal(t, in, once)
		assert.Equal(t, once, Redact(once))
	}
}

func TestBriefRootCause_TruncatesBeforeRedacting(t *testing.T) {
	// 값이 200자 경계에 걸치면 잘린 앞부분만 치환된다
	prefix := strings.Repeat("a ", 93) // 186 chars
	in := prefix + "password: hunter2-very-long-value"
	assert.Equal(t, prefix+"password: REDACTED", BriefRootCause(in))

	// 경계에 걸린 IP 는 4 octet 패턴이 깨져서 일부가 남는다 (알려진 동작)
	prefix = strings.Repeat("b", 194)
	in = prefix + "10.0.0.5 unreachable"
	got := BriefRootCause(in)
	assert.Equal(t, prefix+"10.0.0", got)
	assert.NotContains(t, got, "REDACTED_IP")
}

func TestTruncateRunes_MultiByte(t *testing.T) {
	assert.Equal(t, "한국", TruncateRunes("한국어", 2))
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "", TruncateRunes("abc", 0))
}

func TestResourceTypes(t *testing.T) {
	assert.Equal(t, []string{"LAMBDA"}, ResourceTypes([]string{"arn:aws:lambda:us-east-1:111122223333:function:foo"}))
	assert.Equal(t, []string{"LAMBDA"}, ResourceTypes([]string{
		"arn:aws:lambda:us-east-1:1:function:a",
		"arn:aws:lambda:us-east-1:1:function:b",
	}))
	assert.Empty(t, ResourceTypes([]string{"i-0abc", "arn:aws:short", ""}))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		in   string
		want model.Category
	}{
		{"Connection refused by upstream", model.CategoryNetworkConnectivity},
		{"OOM: MEMORY limit reached", model.CategoryResourceExhaustion},
		{"AccessDenied for role", model.CategoryPermissionsIssue},
		{"bad rollout of v3", model.CategoryDeploymentIssue},
		{"downstream payment provider failing", model.CategoryDependencyFailure},
		{"cosmic rays", model.CategoryUnknown},
		// 첫 번째 매칭이 이긴다: timeout(network) 이 service(dependency) 보다 먼저
		{"service call timeout", model.CategoryNetworkConnectivity},
		// access(permissions) 가 version(deployment) 보다 먼저
		{"new version lost access to bucket", model.CategoryPermissionsIssue},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.in))
			assert.Equal(t, Categorize(tt.in), Categorize(tt.in))
		})
	}
}
