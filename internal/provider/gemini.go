package provider

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// GeminiProvider wraps the Gemini API through google.golang.org/genai,
// grounded on reposearch's VertexAIClient: same client construction
// (APIKey when set, otherwise project/location for Vertex AI backend),
// extended here with Tools on GenerateContentConfig so the agent loop
// can drive function calling, and with batch embedding since indiseek
// embeds many chunks per file rather than one string at a time.
type GeminiProvider struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	dims       int
}

// NewGeminiProvider creates a Gemini-backed provider. projectID/location
// are only used when apiKey is empty, selecting the Vertex AI backend
// instead of the public Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey, projectID, location, chatModel, embedModel string, dims int) (*GeminiProvider, error) {
	if chatModel == "" {
		chatModel = "gemini-2.0-flash"
	}
	if embedModel == "" {
		embedModel = "text-embedding-005"
	}
	if dims == 0 {
		dims = 768
	}

	cc := genai.ClientConfig{Backend: genai.BackendVertexAI}
	if strings.TrimSpace(apiKey) != "" {
		cc.APIKey = apiKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		if strings.TrimSpace(projectID) == "" {
			return nil, ierrors.New(ierrors.ProviderAuthError, "gemini: GEMINI_API_KEY unset and no project configured for Vertex AI")
		}
		cc.Project = projectID
		if location == "" {
			location = "us-central1"
		}
		cc.Location = location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "gemini: create client", err)
	}

	return &GeminiProvider{client: client, chatModel: chatModel, embedModel: embedModel, dims: dims}, nil
}

func (p *GeminiProvider) Dimensions() int { return p.dims }

func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.Text(t)[0]
	}

	cfg := genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	res, err := p.client.Models.EmbedContent(ctx, p.embedModel, contents, &cfg)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "gemini: embed", err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, ierrors.New(ierrors.ProviderTransientErr, "gemini: embedding count mismatch")
	}

	out := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	var system string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "tool":
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolCallID,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		default:
			role := "user"
			if m.Role == "assistant" {
				role = "model"
			}
			contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.Text(system)[0]
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "gemini: generate content", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ierrors.New(ierrors.ProviderTransientErr, "gemini: no candidates returned")
	}

	var text strings.Builder
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, ToolCall{ID: part.FunctionCall.Name, Name: part.FunctionCall.Name, Arguments: string(args)})
		}
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &ChatResponse{
		Content:    strings.TrimSpace(text.String()),
		ToolCalls:  calls,
		Usage:      usage,
		StopReason: string(resp.Candidates[0].FinishReason),
	}, nil
}

func toGeminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}
	// The agent registry builds tool parameters as plain JSON-Schema
	// maps (shared with the OpenAI adapter); genai wants its own Schema
	// struct, so round-trip through the simple fields the agent's
	// tool definitions actually use.
	schema := &genai.Schema{Type: genai.TypeObject}
	props, _ := params["properties"].(map[string]any)
	if len(props) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, _ := raw.(map[string]any)
			propType, _ := prop["type"].(string)
			desc, _ := prop["description"].(string)
			schema.Properties[name] = &genai.Schema{Type: genaiType(propType), Description: desc}
		}
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	return schema
}

func genaiType(jsonSchemaType string) genai.Type {
	switch jsonSchemaType {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
