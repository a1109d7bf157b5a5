// internal/store/dynamo.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invtriage/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoAPI 는 store 가 쓰는 DynamoDB 호출만 모은 interface.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ErrPersist 는 record 쓰기 실패. router 에서는 이벤트 전체 실패로 처리된다.
var ErrPersist = errors.New("investigation store write failed")

// ErrScan 은 최근 record 조회 실패 (retrieval failure).
var ErrScan = errors.New("investigation store scan failed")

// json 태그를 그대로 attribute 이름으로 쓴다.
func useJSONTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }
func useJSONTagsDecode(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

// Store
//
// central investigation store. table key 는 investigation_id 이고
// 같은 id 로 다시 쓰면 item 전체를 덮어쓴다 (redelivery 허용).
type Store struct {
	client DynamoAPI
	table  string
}

func New(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// Put 은 record 한 건을 저장한다.
func (s *Store) Put(ctx context.Context, rec model.StoredInvestigation) error {
	if rec.Tags == nil {
		rec.Tags = map[string]string{}
	}
	item, err := attributevalue.MarshalMapWithOptions(rec, useJSONTags)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrPersist, rec.InvestigationID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersist, rec.InvestigationID, err)
	}
	return nil
}

// Recent 는 timestamp >= cutoff 인 record 를 모두 돌려준다.
//
// timestamp 는 고정 폭 TimeLayout 문자열이라 문자열 비교가 곧 시간 비교다.
// index 가 없으므로 Scan + FilterExpression 을 페이지 끝까지 돈다.
func (s *Store) Recent(ctx context.Context, cutoff time.Time) ([]model.StoredInvestigation, error) {
	filter := expression.Name("timestamp").GreaterThanEqual(expression.Value(model.FormatTime(cutoff)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("%w: build filter: %v", ErrScan, err)
	}

	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var out []model.StoredInvestigation
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScan, err)
		}
		var recs []model.StoredInvestigation
		if err := attributevalue.UnmarshalListOfMapsWithOptions(page.Items, &recs, useJSONTagsDecode); err != nil {
			return nil, fmt.Errorf("%w: unmarshal: %v", ErrScan, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}
