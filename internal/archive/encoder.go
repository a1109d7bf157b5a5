package archive

import (
	"bytes"

	"invtriage/internal/model"
	"invtriage/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// EncodeJSONLGZ 는 이벤트 배치를 한 줄에 하나씩 JSON 인코딩한 뒤 gzip 압축한다.
//
// 버퍼와 gzip.Writer 는 pool 에서 가져오며,
// 결과는 새 slice 로 복사해 호출자에게 소유권을 넘긴다.
// (pool 버퍼를 그대로 반환하면 재사용 시 데이터가 오염된다)
func EncodeJSONLGZ(events []model.SummaryEvent) ([]byte, error) {
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	enc := json.NewEncoder(gz)

	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			_ = gz.Close()
			pool.GzipPool.Put(gz)
			pool.PutBuffer(buf)
			return nil, err
		}
	}

	// Close() 시점에 gzip footer 까지 기록된다.
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	raw := buf.Bytes()
	data := make([]byte, len(raw))
	copy(data, raw)

	pool.PutBuffer(buf)

	return data, nil
}
