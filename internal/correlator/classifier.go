// internal/correlator/classifier.go
package correlator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	json "github.com/goccy/go-json"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 2000
)

// Classifier 는 prompt 를 받아 모델의 text 응답을 돌려준다.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// InvokeAPI 는 Bedrock runtime 호출.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

var errEmptyCompletion = errors.New("classifier returned no content")

// Bedrock 은 Anthropic messages 형식으로 InvokeModel 을 호출한다.
type Bedrock struct {
	client  InvokeAPI
	modelID string
}

func NewBedrock(client InvokeAPI, modelID string) *Bedrock {
	return &Bedrock{client: client, modelID: modelID}
}

func (b *Bedrock) Classify(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke model %s: %w", b.modelID, err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Content[0].Text, nil
}
