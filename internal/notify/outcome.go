// internal/notify/outcome.go
package notify

import (
	"context"

	"invtriage/internal/model"
)

// Channel 은 best-effort 알림 채널 이름.
type Channel string

const (
	ChannelPage      Channel = "page"
	ChannelTicket    Channel = "ticket"
	ChannelBroadcast Channel = "broadcast"
)

// Status 는 채널 하나의 처리 결과.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // 채널 미설정
)

// Outcome 은 이벤트 하나에 대한 채널 결과. 실패해도 호출자를 중단시키지 않는다.
type Outcome struct {
	Channel Channel `json:"channel"`
	Status  Status  `json:"status"`
	Reason  string  `json:"reason,omitempty"`
}

// Notifier 는 router 가 호출하는 채널 공통 interface.
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, ev model.SummaryEvent) Outcome
}

func sent(c Channel) Outcome { return Outcome{Channel: c, Status: StatusSent} }

func skipped(c Channel, reason string) Outcome {
	return Outcome{Channel: c, Status: StatusSkipped, Reason: reason}
}

func failed(c Channel, err error) Outcome {
	return Outcome{Channel: c, Status: StatusFailed, Reason: err.Error()}
}
