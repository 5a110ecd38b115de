package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/retrieval"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
	"github.com/breeze4/indiseek/pkg/models"
)

// scriptedChat replays a fixed sequence of responses, one per Chat call,
// so loop tests can assert exact iteration counts and tool dispatch
// without a live model.
type scriptedChat struct {
	responses []*provider.ChatResponse
	calls     int
}

func (s *scriptedChat) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	if s.calls >= len(s.responses) {
		return &provider.ChatResponse{Content: "out of script"}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func newTestDeps(t *testing.T, chat provider.ChatProvider) Deps {
	t.Helper()
	dataDir := t.TempDir()
	db, err := store.Open(filepath.Join(dataDir, "indiseek.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := db.CreateRepo("acme", "https://example.com/acme.git", "/tmp/acme")
	require.NoError(t, err)

	chunk := &models.Chunk{RepoID: repo.ID, FilePath: "main.go", SymbolName: "Run", ChunkType: models.ChunkFunction, StartLine: 1, EndLine: 3, Content: "func Run() {}"}
	_, _, err = db.ReplaceFileChunks(repo.ID, "main.go", []*models.Chunk{chunk})
	require.NoError(t, err)

	vectors := vectorstore.NewManager(dataDir)
	lexical := lexstore.NewManager(dataDir)
	require.NoError(t, lexical.Open(repo.ID))
	require.NoError(t, lexical.Build(repo.ID, []lexstore.Document{
		{ChunkID: chunk.ID, FilePath: chunk.FilePath, SymbolName: chunk.SymbolName, Content: chunk.Content},
	}))

	tools := retrieval.New(db, vectors, lexical)
	registry := retrieval.NewRegistry(tools, provider.NewStubProvider(8))

	return Deps{
		RepoID:   repo.ID,
		Registry: registry,
		Chat:     chat,
		Model:    "gpt-4o-mini",
		Prices:   defaultPriceTable(),
		RepoMap:  "(empty)",
	}
}

func TestRunLoop_NoToolCalls_ReturnsImmediateAnswer(t *testing.T) {
	chat := &scriptedChat{responses: []*provider.ChatResponse{
		{Content: "the answer", Usage: provider.Usage{PromptTokens: 100, CompletionTokens: 20}},
	}}
	deps := newTestDeps(t, chat)

	result, err := runLoop(context.Background(), deps, "what does this do?", nil, loopConfig{maxIterations: 12, synthesisMargin: 2})
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Answer)
	assert.Empty(t, result.Evidence)
	assert.Equal(t, 100, result.Usage.PromptTokens)
	assert.Greater(t, result.Usage.EstimatedCost, 0.0)
}

func TestRunLoop_DispatchesToolCallThenAnswers(t *testing.T) {
	chat := &scriptedChat{responses: []*provider.ChatResponse{
		{
			ToolCalls: []provider.ToolCall{{ID: "1", Name: "search_code", Arguments: `{"query":"Run","mode":"lexical"}`}},
			Usage:     provider.Usage{PromptTokens: 50, CompletionTokens: 10},
		},
		{Content: "Run is defined in main.go", Usage: provider.Usage{PromptTokens: 80, CompletionTokens: 15}},
	}}
	deps := newTestDeps(t, chat)

	result, err := runLoop(context.Background(), deps, "where is Run?", nil, loopConfig{maxIterations: 12, synthesisMargin: 2})
	require.NoError(t, err)
	assert.Equal(t, "Run is defined in main.go", result.Answer)
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, "search_code", result.Evidence[0].ToolName)
	assert.False(t, result.Evidence[0].IsError)
	assert.Equal(t, 130, result.Usage.PromptTokens)
}

func TestRunLoop_DuplicateSearchIsMemoized(t *testing.T) {
	sameCall := provider.ToolCall{ID: "1", Name: "search_code", Arguments: `{"query":"Run function","mode":"lexical"}`}
	chat := &scriptedChat{responses: []*provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{sameCall}},
		{ToolCalls: []provider.ToolCall{{ID: "2", Name: "search_code", Arguments: `{"query":"run function!","mode":"lexical"}`}}},
		{Content: "done"},
	}}
	deps := newTestDeps(t, chat)

	result, err := runLoop(context.Background(), deps, "find Run", nil, loopConfig{maxIterations: 12, synthesisMargin: 2})
	require.NoError(t, err)
	require.Len(t, result.Evidence, 2)
	assert.Contains(t, result.Evidence[1].Summary, "memoized")
}

func TestRunLoop_ModelErrorReturnsPartialResult(t *testing.T) {
	deps := newTestDeps(t, &erroringChat{})
	result, err := runLoop(context.Background(), deps, "anything", nil, loopConfig{maxIterations: 12, synthesisMargin: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Answer)
}

type erroringChat struct{}

func (erroringChat) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	return nil, assert.AnError
}

func TestRunLoop_SynthesisMarginDisablesToolsNearBudgetEnd(t *testing.T) {
	responses := make([]*provider.ChatResponse, 0, 5)
	for i := 0; i < 3; i++ {
		responses = append(responses, &provider.ChatResponse{
			ToolCalls: []provider.ToolCall{{ID: "x", Name: "read_file", Arguments: `{"path":"main.go"}`}},
		})
	}
	responses = append(responses, &provider.ChatResponse{Content: "final"})
	chat := &scriptedChat{responses: responses}
	deps := newTestDeps(t, chat)

	result, err := runLoop(context.Background(), deps, "describe main.go", nil, loopConfig{maxIterations: 4, synthesisMargin: 1})
	require.NoError(t, err)
	assert.Equal(t, "final", result.Answer)
}

func TestDefaultRegistry_AutoPicksSingleForShortPrompt(t *testing.T) {
	r := DefaultRegistry()
	deps := newTestDeps(t, &scriptedChat{responses: []*provider.ChatResponse{{Content: "ok"}}})
	assert.Equal(t, "single", chooseStrategy("what is Run"))
	run, err := r.Build("auto", deps, "what is Run")
	require.NoError(t, err)
	result, err := run(context.Background(), "what is Run", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Answer)
}

func TestDefaultRegistry_UnknownStrategyIsBadRequest(t *testing.T) {
	r := DefaultRegistry()
	deps := newTestDeps(t, &scriptedChat{})
	_, err := r.Build("nonexistent", deps, "anything")
	require.Error(t, err)
	assert.True(t, ierrors.OfKind(err, ierrors.BadRequest))
}

