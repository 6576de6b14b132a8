package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/hellochat/pkg/llm"
)

const chatQuery = `query Chat($message: String!, $model: String) {
  chat(message: $message, model: $model) {
    content
    model
    usage { prompt_tokens completion_tokens total_tokens }
  }
}`

// GraphQLSource fetches a buffered answer from the server's GraphQL endpoint
// and reveals it rune by rune.
type GraphQLSource struct {
	// Endpoint is the full GraphQL URL, e.g. http://localhost:8080/graphql.
	Endpoint string

	// RevealDelay is the pause between revealed runes. Zero uses
	// DefaultRevealDelay; a negative value reveals without pausing.
	RevealDelay time.Duration

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data struct {
		Chat *struct {
			Content string     `json:"content"`
			Model   string     `json:"model"`
			Usage   *llm.Usage `json:"usage"`
		} `json:"chat"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Stream implements Source.
func (g *GraphQLSource) Stream(ctx context.Context, message, model string, onUpdate UpdateFunc) (string, error) {
	content, err := g.fetch(ctx, message, model)
	if err != nil {
		return "", err
	}

	delay := g.RevealDelay
	switch {
	case delay == 0:
		delay = DefaultRevealDelay
	case delay < 0:
		delay = 0
	}

	if err := Reveal(ctx, content, delay, onUpdate); err != nil {
		return "", err
	}
	return content, nil
}

func (g *GraphQLSource) fetch(ctx context.Context, message, model string) (string, error) {
	if model == "" {
		model = llm.DefaultModel
	}

	payload, err := json.Marshal(graphQLRequest{
		Query:     chatQuery,
		Variables: map[string]any{"message": message, "model": model},
	})
	if err != nil {
		return "", fmt.Errorf("encoding graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading graphql response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ServerError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out graphQLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding graphql response: %w", err)
	}
	if len(out.Errors) > 0 {
		return "", &ServerError{Message: out.Errors[0].Message}
	}
	if out.Data.Chat == nil {
		return "", &ServerError{Message: "empty chat response"}
	}

	return out.Data.Chat.Content, nil
}

func (g *GraphQLSource) httpClient() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}
