package archive

import (
	"context"
	"fmt"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"

	"github.com/rs/zerolog/log"
)

// Archiver 는 cycle 하나에서 bus 전달에 성공한 이벤트를
// gzip JSONL 객체 하나로 S3 에 남긴다.
//
// best-effort 경로다: 실패해도 watermark 나 cycle 결과에는 영향이 없다.
type Archiver struct {
	uploader *S3Uploader
	prefix   string
	client   string
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewArchiver(uploader *S3Uploader, prefix, client string, m *metrics.Metrics) *Archiver {
	return &Archiver{
		uploader: uploader,
		prefix:   prefix,
		client:   client,
		metrics:  m,
		now:      time.Now,
	}
}

// Archive 는 events 를 업로드하고 object key 를 돌려준다.
// events 가 비어 있으면 아무것도 하지 않는다.
func (a *Archiver) Archive(ctx context.Context, events []model.SummaryEvent) (string, error) {
	if len(events) == 0 {
		return "", nil
	}

	data, err := EncodeJSONLGZ(events)
	if err != nil {
		return "", fmt.Errorf("encode archive batch: %w", err)
	}

	now := a.now()
	key := BuildS3Key(a.prefix, a.client, now, NewFilename(now, a.client))

	if err := a.uploader.UploadBytesCtx(ctx, key, data); err != nil {
		return "", fmt.Errorf("upload archive %s: %w", key, err)
	}

	a.metrics.ArchiveEventsStoredTotal.Add(float64(len(events)))
	log.Debug().
		Str("key", key).
		Int("events", len(events)).
		Int("bytes", len(data)).
		Msg("archived forwarded events")
	return key, nil
}
