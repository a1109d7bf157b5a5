package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	values map[string]string
	getErr error
	puts   []*ssm.PutParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func (f *fakeSSM) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[aws.ToString(in.Name)] = aws.ToString(in.Value)
	f.puts = append(f.puts, in)
	return &ssm.PutParameterOutput{}, nil
}

const param = "/investigation-orchestrator/Acme/last-processed-investigation"

func fixedNow() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestGet_MissingParameterDefaultsToOneHourAgo(t *testing.T) {
	s := NewWatermarkStore(&fakeSSM{}, param, "Acme").WithClock(fixedNow)

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow().Add(-time.Hour), got)
}

func TestGet_OtherErrorsPropagate(t *testing.T) {
	s := NewWatermarkStore(&fakeSSM{getErr: errors.New("throttled")}, param, "Acme")

	_, err := s.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestGet_AcceptsLegacyZonelessValue(t *testing.T) {
	f := &fakeSSM{values: map[string]string{param: "2024-05-01T10:15:30.123456"}}
	s := NewWatermarkStore(f, param, "Acme")

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 15, 30, 123456000, time.UTC), got)
}

func TestSetThenGet_RoundTripsAndOverwrites(t *testing.T) {
	f := &fakeSSM{}
	s := NewWatermarkStore(f, param, "Acme")
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 11, 0, 0, 500000000, time.UTC)
	second := first.Add(10 * time.Minute)

	require.NoError(t, s.Set(ctx, first))
	require.NoError(t, s.Set(ctx, second))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	require.Len(t, f.puts, 2)
	assert.True(t, aws.ToBool(f.puts[1].Overwrite))
	assert.Equal(t, types.ParameterTypeString, f.puts[1].Type)
	assert.Equal(t, "2024-05-01T11:10:00.500000Z", aws.ToString(f.puts[1].Value))
}
