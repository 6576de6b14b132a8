package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/relay"
)

// Schema is the GraphQL schema served at /graphql.
const Schema = `
	schema {
		query: Query
	}

	type Query {
		chat(message: String!, model: String = "deepseek-chat"): ChatResponse!
		chatStream(message: String!, model: String = "deepseek-chat"): ChatStreamResponse!
	}

	type ChatResponse {
		content: String!
		model: String!
		usage: Usage
	}

	type ChatStreamResponse {
		content: String!
		model: String!
		isComplete: Boolean!
		usage: Usage
	}

	type Usage {
		prompt_tokens: Int!
		completion_tokens: Int!
		total_tokens: Int!
	}
`

func newSchema(s *Server) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(Schema, &queryResolver{server: s})
	if err != nil {
		return nil, fmt.Errorf("parsing graphql schema: %w", err)
	}
	return schema, nil
}

type chatArgs struct {
	Message string
	Model   *string
}

func (a chatArgs) model() string {
	if a.Model == nil {
		return llm.DefaultModel
	}
	return *a.Model
}

type queryResolver struct {
	server *Server
}

// Chat runs a buffered one-shot completion.
func (q *queryResolver) Chat(ctx context.Context, args chatArgs) (*chatResponseResolver, error) {
	r := q.server.relay
	res, err := r.Complete(ctx, r.OneShotRequest(args.Message, args.model()))
	if err != nil {
		return nil, q.resolverError("chat", err)
	}
	return &chatResponseResolver{result: res}, nil
}

// ChatStream runs a progressive completion and returns its final state.
func (q *queryResolver) ChatStream(ctx context.Context, args chatArgs) (*chatResponseResolver, error) {
	r := q.server.relay
	res, err := r.CompleteProgressive(ctx, "", r.ProgressiveRequest(args.Message, args.model()), nil)
	if err != nil {
		return nil, q.resolverError("chatStream", err)
	}
	return &chatResponseResolver{result: res}, nil
}

func (q *queryResolver) resolverError(field string, err error) error {
	q.server.logger.Error("graphql resolver failed", "field", field, "error", err)
	if errors.Is(err, relay.ErrMissingCredential) {
		return errors.New("DeepSeek API key not configured")
	}
	return fmt.Errorf("failed to get response from DeepSeek: %w", err)
}

// chatResponseResolver serves both ChatResponse and ChatStreamResponse.
type chatResponseResolver struct {
	result llm.AggregatedResult
}

func (c *chatResponseResolver) Content() string { return c.result.Content }

func (c *chatResponseResolver) Model() string { return c.result.Model }

func (c *chatResponseResolver) IsComplete() bool { return c.result.IsComplete }

func (c *chatResponseResolver) Usage() *usageResolver {
	if c.result.Usage == nil {
		return nil
	}
	return &usageResolver{usage: *c.result.Usage}
}

type usageResolver struct {
	usage llm.Usage
}

func (u *usageResolver) PromptTokens() int32 { return int32(u.usage.PromptTokens) }

func (u *usageResolver) CompletionTokens() int32 { return int32(u.usage.CompletionTokens) }

func (u *usageResolver) TotalTokens() int32 { return int32(u.usage.TotalTokens) }

// handleGraphQLGet executes a query passed in the URL, for clients that
// cannot POST.
func (s *Server) handleGraphQLGet(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "query is required"})
	}

	var variables map[string]any
	if raw := c.Query("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &variables); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "variables must be a JSON object"})
		}
	}

	resp := s.schema.Exec(c.UserContext(), query, c.Query("operationName"), variables)
	return c.JSON(resp)
}
