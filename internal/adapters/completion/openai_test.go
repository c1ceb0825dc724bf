package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	openai "repo-digest/internal/infra/openai"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) Chat(ctx context.Context, req openai.ChatRequest) (openai.ChatResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatResponse), args.Error(1)
}

func chatResponse(text string) openai.ChatResponse {
	return openai.ChatResponse{Choices: []openai.ChatChoice{{Message: openai.ChatMessage{Role: "assistant", Content: text}}}}
}

func TestOpenAICompleteBuildsRequest(t *testing.T) {
	chat := &mockChat{}
	chat.On("Chat", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.Model == "gpt-test" && req.MaxTokens == 200 && len(req.Messages) == 2 &&
			req.Messages[0].Role == openai.RoleSystem &&
			assert.ObjectsAreEqual(HighlightsPrompt("🐛 Bugfixes:\n- fix: null pointer"), req.Messages[1].Content)
	})).Return(chatResponse("  polished  "), nil).Once()

	out, err := NewOpenAI(chat, "gpt-test", 200).Complete(context.Background(), "🐛 Bugfixes:\n- fix: null pointer")
	require.NoError(t, err)
	assert.Equal(t, "polished", out)
	chat.AssertExpectations(t)
}

func TestOpenAICompletePropagatesError(t *testing.T) {
	chat := &mockChat{}
	chat.On("Chat", mock.Anything, mock.Anything).Return(openai.ChatResponse{}, errors.New("quota")).Once()

	_, err := NewOpenAI(chat, "", 0).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestOpenAICompleteRejectsBlank(t *testing.T) {
	chat := &mockChat{}
	chat.On("Chat", mock.Anything, mock.Anything).Return(chatResponse("   "), nil).Once()

	_, err := NewOpenAI(chat, "", 0).Complete(context.Background(), "x")
	assert.ErrorIs(t, err, openai.ErrEmptyCompletion)
}

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Complete(context.Background(), "as is")
	require.NoError(t, err)
	assert.Equal(t, "as is", out)
}
