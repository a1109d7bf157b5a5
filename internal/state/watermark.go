// internal/state/watermark.go
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FirstRunLookback 는 watermark 가 아직 없을 때 되돌아볼 기간이다.
const FirstRunLookback = time.Hour

// ParameterAPI 는 WatermarkStore 가 사용하는 SSM client 의 부분집합이다.
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// WatermarkStore
//
// client 하나의 "마지막으로 전달한 investigation 완료 시각"을
// SSM Parameter Store 단일 키에 보관한다.
//
// Set 은 무조건 덮어쓴다 (CAS 없음). 같은 client 의 poller 가 동시에 두 개
// 돌지 않는다는 것은 외부 scheduler 가 보장한다. 위반되면 나중에 쓴 쪽이 이긴다.
type WatermarkStore struct {
	client     ParameterAPI
	name       string
	clientName string
	now        func() time.Time
}

func NewWatermarkStore(client ParameterAPI, parameterName, clientName string) *WatermarkStore {
	return &WatermarkStore{
		client:     client,
		name:       parameterName,
		clientName: clientName,
		now:        time.Now,
	}
}

// WithClock 은 테스트용 시계를 주입한다.
func (s *WatermarkStore) WithClock(now func() time.Time) *WatermarkStore {
	s.now = now
	return s
}

// Get 은 저장된 watermark 를 돌려준다.
// parameter 가 없으면 (첫 실행) now-1h 를 돌려주며 에러가 아니다.
func (s *WatermarkStore) Get(ctx context.Context) (time.Time, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.name),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return s.now().UTC().Add(-FirstRunLookback), nil
		}
		return time.Time{}, fmt.Errorf("get watermark %s: %w", s.name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return s.now().UTC().Add(-FirstRunLookback), nil
	}

	t, err := model.ParseTime(aws.ToString(out.Parameter.Value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %s=%q: %w", s.name, aws.ToString(out.Parameter.Value), err)
	}
	return t, nil
}

// Set 은 watermark 를 t 로 덮어쓴다.
func (s *WatermarkStore) Set(ctx context.Context, t time.Time) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:        aws.String(s.name),
		Value:       aws.String(model.FormatTime(t)),
		Type:        types.ParameterTypeString,
		Overwrite:   aws.Bool(true),
		Description: aws.String("Last processed investigation timestamp for " + s.clientName),
	})
	if err != nil {
		return fmt.Errorf("put watermark %s: %w", s.name, err)
	}
	return nil
}
