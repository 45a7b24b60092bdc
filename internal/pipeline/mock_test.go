package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

// mockClient is a testify mock for the anthropic.Client interface.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// textResponse wraps a string as a single-block message response.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// forModel matches a request sent to the given model.
func forModel(name string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == name
	})
}
