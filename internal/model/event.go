// internal/model/event.go
package model

// 이벤트 고정 상수.
const (
	EventTypeInvestigationCompleted = "investigation_completed"
	StatusRootCauseFound            = "ROOT_CAUSE_FOUND"
	MitigationPlanGenerated         = "plan_generated"

	// EventBridge 전송 시 사용하는 source / detail-type
	BusSource     = "devops.investigation"
	BusDetailType = "InvestigationCompleted"
)

// Category 는 root cause 의 상위 분류이다.
type Category string

const (
	CategoryNetworkConnectivity Category = "network_connectivity"
	CategoryResourceExhaustion  Category = "resource_exhaustion"
	CategoryPermissionsIssue    Category = "permissions_issue"
	CategoryDeploymentIssue     Category = "deployment_issue"
	CategoryDependencyFailure   Category = "dependency_failure"
	CategoryUnknown             Category = "unknown"
)

// SummaryEvent
// ------------------------------------------------------------
// client 계정 → central 계정으로 trust boundary 를 넘어가는 유일한 데이터.
// raw 로그는 포함하지 않으며, root cause 는 잘라내고 redaction 한 값만 싣는다.
//
// 식별자는 (InvestigationID, ClientAccountID) 조합이다.
// 한 번 생성되면 바뀌지 않고, 같은 식별자로 다시 보내면 store 에서 덮어쓴다.
//
// json 태그는 EventBridge detail, DynamoDB item(attributevalue TagKey=json),
// S3 archive 모두에 공통으로 쓰인다.
type SummaryEvent struct {
	EventType       string            `json:"event_type"`
	InvestigationID string            `json:"investigation_id"`
	ClientAccountID string            `json:"client_account_id"`
	ClientName      string            `json:"client_name"`
	Timestamp       string            `json:"timestamp"`
	Severity        Severity          `json:"severity"`
	Status          string            `json:"status"`
	Summary         Summary           `json:"summary"`
	Links           Links             `json:"links"`
	Tags            map[string]string `json:"tags"`
}

// Summary 는 크기가 제한된 요약 정보이다.
type Summary struct {
	AffectedResources []string `json:"affected_resources"` // 최대 5개
	ResourceTypes     []string `json:"resource_types"`     // 중복 제거, 정렬됨
	DurationMinutes   int      `json:"duration_minutes"`
	RootCauseCategory Category `json:"root_cause_category"`
	RootCauseBrief    string   `json:"root_cause_brief"` // 200자 truncate 후 redaction
	MitigationStatus  string   `json:"mitigation_status"`
}

// Links 는 원본 데이터로 가는 링크만 담는다 (secret/raw data 금지).
type Links struct {
	DevOpsAgentInvestigation string `json:"devops_agent_investigation"`
	CloudWatchLogs           string `json:"cloudwatch_logs"`
	AffectedApplication      string `json:"affected_application"`
}

// BusEnvelope 는 central 쪽에서 수신하는 EventBridge 이벤트 형태이다.
// Detail 에 SummaryEvent 가 그대로 들어있다.
type BusEnvelope struct {
	ID         string       `json:"id,omitempty"`
	Source     string       `json:"source"`
	DetailType string       `json:"detail-type"`
	Account    string       `json:"account,omitempty"`
	Time       string       `json:"time,omitempty"`
	Detail     SummaryEvent `json:"detail"`
}

// StoredInvestigation 은 central investigation store(DynamoDB) 한 건이다.
// SummaryEvent 필드에 router 처리 시각과 배포 환경을 덧붙인다.
type StoredInvestigation struct {
	SummaryEvent
	ProcessedAt string `json:"processed_at"`
	Environment string `json:"environment"`
}
