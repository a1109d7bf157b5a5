// internal/archive/s3_uploader.go
package archive

import (
	"bytes"
	"context"
	"time"

	"invtriage/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI 는 S3Uploader 가 사용하는 S3 client 의 부분집합이다.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader 는 archive 객체 업로드를 담당한다.
//
// 각 시도는 Timeout 을 가지며, 시도 횟수는 Attempts 로만 제어한다.
// (S3 client 쪽 SDK 는 단일 시도로 생성됨, cmd/triage/aws.go 참고)
type S3Uploader struct {
	client   ObjectAPI
	bucket   string
	timeout  time.Duration
	attempts int
	metrics  *metrics.Metrics
}

func NewS3Uploader(client ObjectAPI, bucket string, timeout time.Duration, attempts int, m *metrics.Metrics) *S3Uploader {
	if attempts < 1 {
		attempts = 1
	}
	return &S3Uploader{
		client:   client,
		bucket:   bucket,
		timeout:  timeout,
		attempts: attempts,
		metrics:  m,
	}
}

// UploadBytesCtx
// -----------------------
// 메모리에 있는 gzip+JSONL 바이트를 업로드한다.
// attempts > 1 이면 exponential backoff(200ms 시작, 최대 2초)로 재시도한다.
// body reader 는 매 시도마다 새로 만든다.
func (u *S3Uploader) UploadBytesCtx(ctx context.Context, key string, body []byte) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= u.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := u.putObject(ctx, key, body)
		if err == nil {
			return nil
		}
		lastErr = err
		u.metrics.S3PutErrorsTotal.Inc()

		if attempt == u.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return lastErr
}

// putObject 는 PutObject 1회 호출만 담당한다.
func (u *S3Uploader) putObject(ctx context.Context, key string, body []byte) error {
	ctx2 := ctx
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx2, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	_, err := u.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:          aws.String(u.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	return err
}
