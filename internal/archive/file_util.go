// internal/archive/file_util.go
package archive

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// 파일명 규칙:
//
//	<unix>_<client>_<counter>.jsonl.gz
//
// 예:
//
//	1764721594_acme_000042.jsonl.gz
//
// 정렬하면 곧 시간 순 정렬이다.
var globalCounter uint64

// NextCounter 는 원자적 증가 값이며 1,000,000 에서 0 으로 돌아간다.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewFilename 은 <unix>_<client>_<counter>.jsonl.gz 를 만든다.
func NewFilename(now time.Time, client string) string {
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", now.Unix(), slug(client), NextCounter())
}

// BuildS3Key
//
//	<prefix>/client=<client>/dt=<YYYY-MM-DD>/hr=<HH>/<filename>
//
// Athena / Glue 파티션 스캔 비용을 줄이기 위한 구조. 시간은 UTC 기준.
func BuildS3Key(prefix, client string, now time.Time, filename string) string {
	now = now.UTC()
	prefix = strings.TrimRight(prefix, "/")
	return fmt.Sprintf("%s/client=%s/dt=%s/hr=%s/%s",
		prefix, slug(client), now.Format("2006-01-02"), now.Format("15"), filename)
}

// slug 는 client 이름을 key 에 쓸 수 있는 형태로 바꾼다 (소문자, 공백 → '-').
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '.':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
