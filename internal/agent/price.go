package agent

import (
	"encoding/json"
	"os"
)

// ModelPrice is the per-million-token rate for one model, used to turn
// raw token counts into UsageStats.EstimatedCost.
type ModelPrice struct {
	PromptPerMillion     float64 `json:"prompt_per_million"`
	CompletionPerMillion float64 `json:"completion_per_million"`
}

// PriceTable maps model name to its rate. An unknown model costs 0 —
// callers still get accurate token counts, just no dollar estimate.
type PriceTable map[string]ModelPrice

// defaultPriceTable covers the Gemini and OpenAI default chat models and
// a few other common models, so cost estimation works for them without
// PRICE_TABLE_PATH set. The Anthropic default models
// (claude-3-5-haiku-latest, claude-3-5-sonnet-latest) are not listed and
// estimate 0.
func defaultPriceTable() PriceTable {
	return PriceTable{
		"gpt-4o-mini":          {PromptPerMillion: 0.15, CompletionPerMillion: 0.60},
		"gpt-4o":               {PromptPerMillion: 2.50, CompletionPerMillion: 10.00},
		"gemini-2.0-flash":     {PromptPerMillion: 0.10, CompletionPerMillion: 0.40},
		"gemini-1.5-pro":       {PromptPerMillion: 1.25, CompletionPerMillion: 5.00},
		"claude-3-5-sonnet-20241022": {PromptPerMillion: 3.00, CompletionPerMillion: 15.00},
	}
}

// LoadPriceTable reads a JSON price table from path, falling back to the
// built-in defaults when path is empty or unreadable.
func LoadPriceTable(path string) PriceTable {
	table := defaultPriceTable()
	if path == "" {
		return table
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return table
	}
	var loaded PriceTable
	if err := json.Unmarshal(data, &loaded); err != nil {
		return table
	}
	for model, price := range loaded {
		table[model] = price
	}
	return table
}

// EstimateCost computes a dollar estimate for one Chat call's usage
// against model's rate in the table; unknown models estimate 0.
func (t PriceTable) EstimateCost(model string, promptTokens, completionTokens int) float64 {
	price, ok := t[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1_000_000*price.PromptPerMillion +
		float64(completionTokens)/1_000_000*price.CompletionPerMillion
}
