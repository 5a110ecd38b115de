package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubProvider_Embed_ReturnsZeroVectorsOfConfiguredDim(t *testing.T) {
	s := NewStubProvider(4)
	vectors, err := s.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 0, 0, 0}, vectors[0])
	assert.Equal(t, 4, s.Dimensions())
}

func TestStubProvider_Chat_FindsLeadingComment(t *testing.T) {
	s := NewStubProvider(0)
	resp, err := s.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "// parses the config file\nfunc Load() {}"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "// parses the config file", resp.Content)
}

func TestStubProvider_Chat_FallsBackWhenNoComment(t *testing.T) {
	s := NewStubProvider(0)
	resp, err := s.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "func Load() {}"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "no summary available (stub provider)", resp.Content)
}
