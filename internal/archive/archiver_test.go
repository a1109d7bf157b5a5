package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"invtriage/internal/metrics"
	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	failures int // 앞에서부터 실패할 호출 수
	calls    int
	keys     []string
	bodies   [][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("SlowDown")
	}
	b, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

func decodeJSONLGZ(t *testing.T, data []byte) []model.SummaryEvent {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	var out []model.SummaryEvent
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		var ev model.SummaryEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestArchive_WritesGzipJSONL(t *testing.T) {
	f := &fakeS3{}
	m := metrics.New()
	a := NewArchiver(NewS3Uploader(f, "archive-bucket", time.Second, 1, m), "investigations/", "Acme Corp", m)
	a.now = func() time.Time { return time.Date(2024, 5, 1, 9, 4, 0, 0, time.UTC) }

	events := []model.SummaryEvent{
		{InvestigationID: "inv-1", ClientName: "Acme Corp"},
		{InvestigationID: "inv-2", ClientName: "Acme Corp"},
	}

	key, err := a.Archive(context.Background(), events)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "investigations/client=acme-corp/dt=2024-05-01/hr=09/1714554240_acme-corp_"), key)
	assert.True(t, strings.HasSuffix(key, ".jsonl.gz"))

	require.Len(t, f.bodies, 1)
	got := decodeJSONLGZ(t, f.bodies[0])
	require.Len(t, got, 2)
	assert.Equal(t, "inv-1", got[0].InvestigationID)
	assert.Equal(t, "inv-2", got[1].InvestigationID)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArchiveEventsStoredTotal))
}

func TestArchive_EmptyBatchIsNoop(t *testing.T) {
	f := &fakeS3{}
	m := metrics.New()
	a := NewArchiver(NewS3Uploader(f, "b", time.Second, 1, m), "p", "c", m)

	key, err := a.Archive(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Zero(t, f.calls)
}

func TestUploader_RetriesUpToAttempts(t *testing.T) {
	f := &fakeS3{failures: 1}
	m := metrics.New()
	u := NewS3Uploader(f, "b", time.Second, 2, m)

	require.NoError(t, u.UploadBytesCtx(context.Background(), "k", []byte("x")))
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.S3PutErrorsTotal))
}

func TestUploader_SingleAttemptReturnsError(t *testing.T) {
	f := &fakeS3{failures: 5}
	m := metrics.New()
	u := NewS3Uploader(f, "b", time.Second, 1, m)

	err := u.UploadBytesCtx(context.Background(), "k", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "acme-corp", slug(" Acme Corp "))
	assert.Equal(t, "unknown", slug("!!!"))
}
