package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/genai"
)

func TestNewGeminiProvider_NoAPIKeyOrProject(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "", "", "", "", 0)
	require.Error(t, err)
}

func TestToGeminiSchema_ConvertsObjectProperties(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "search text"},
			"limit": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}

	schema := toGeminiSchema(params)
	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Contains(t, schema.Properties, "query")
	assert.Equal(t, genai.TypeString, schema.Properties["query"].Type)
	assert.Equal(t, "search text", schema.Properties["query"].Description)
	require.Contains(t, schema.Properties, "limit")
	assert.Equal(t, genai.TypeInteger, schema.Properties["limit"].Type)
	assert.Equal(t, []string{"query"}, schema.Required)
}

func TestToGeminiSchema_NilParamsReturnsNil(t *testing.T) {
	assert.Nil(t, toGeminiSchema(nil))
}

func TestGenaiType_MapsJSONSchemaTypes(t *testing.T) {
	assert.Equal(t, genai.TypeString, genaiType("string"))
	assert.Equal(t, genai.TypeInteger, genaiType("integer"))
	assert.Equal(t, genai.TypeNumber, genaiType("number"))
	assert.Equal(t, genai.TypeBoolean, genaiType("boolean"))
	assert.Equal(t, genai.TypeArray, genaiType("array"))
	assert.Equal(t, genai.TypeObject, genaiType("object"))
	assert.Equal(t, genai.TypeString, genaiType("unknown"))
}
