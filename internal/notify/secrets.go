// internal/notify/secrets.go
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	json "github.com/goccy/go-json"
)

// SecretsAPI 는 Secrets Manager 조회만 필요하다.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var errEmptySecret = errors.New("secret has no string value")

// loadSecret 은 JSON SecretString 을 out 으로 decode 한다.
// 호출마다 새로 읽는다 (프로세스 간 캐시 없음).
func loadSecret(ctx context.Context, client SecretsAPI, name string, out any) error {
	res, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("get secret %s: %w", name, err)
	}
	if res.SecretString == nil || *res.SecretString == "" {
		return fmt.Errorf("get secret %s: %w", name, errEmptySecret)
	}
	if err := json.Unmarshal([]byte(*res.SecretString), out); err != nil {
		return fmt.Errorf("decode secret %s: %w", name, err)
	}
	return nil
}
