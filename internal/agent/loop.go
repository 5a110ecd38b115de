package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/pkg/models"
)

// loopConfig parameterizes the iteration budget and verification behavior
// shared by every registered strategy.
type loopConfig struct {
	maxIterations     int
	synthesisMargin   int // iterations before maxIterations at which tools are disabled
	critiqueThreshold int // tool-call count that triggers a one-time critique turn; 0 disables it
}

const decisionTable = `Decision table:
- "where is X defined / what does X look like" -> resolve_symbol(action=definition), then read_file
- "who calls X" / "what calls X" -> resolve_symbol(action=callers)
- "what does X call" -> resolve_symbol(action=callees)
- "find code that does Y" (no exact name) -> search_code(mode=hybrid)
- "what is this file/directory for" -> read_map, then read_file for detail
- exact known file path and line range -> read_file directly`

func systemPrompt(repoMap string) string {
	var b strings.Builder
	b.WriteString("You are a code research assistant. Answer the user's question about this repository using the available tools. Cite file paths and line numbers in your final answer when relevant.\n\n")
	b.WriteString(decisionTable)
	b.WriteString("\n\nRepo map:\n")
	b.WriteString(repoMap)
	return b.String()
}

const critiquePrompt = `Before finalizing, list the concrete claims your answer will make and verify each one with a targeted tool call if you have not already done so.`

// runLoop drives deps.Chat through the tool-calling loop per cfg and
// returns the final QueryResult. It never returns a non-nil error for a
// model failure — that is reported as QueryResult.Error per the
// failure-mode contract; a non-nil error here means the loop could not
// even start (e.g. a malformed request), which should not happen given a
// well-formed Deps.
func runLoop(ctx context.Context, deps Deps, prompt string, progress ProgressFunc, cfg loopConfig) (*QueryResult, error) {
	messages := []provider.Message{
		{Role: "system", Content: systemPrompt(deps.RepoMap)},
		{Role: "user", Content: prompt},
	}

	specs := toProviderTools(toProviderToolsFromRegistry(deps.Registry.ListTools()))
	memo := newToolMemo()
	usage := UsageStats{}
	var evidence []models.EvidenceStep
	toolCallCount := 0
	critiqued := cfg.critiqueThreshold == 0

	for iter := 0; iter < cfg.maxIterations; iter++ {
		report(progress, "agent_loop", iter+1, cfg.maxIterations, "")

		req := provider.ChatRequest{Model: deps.Model, Messages: messages}
		forceSynthesis := iter >= cfg.maxIterations-cfg.synthesisMargin
		if !forceSynthesis {
			req.Tools = specs
		}

		resp, err := deps.Chat.Chat(ctx, req)
		if err != nil {
			return &QueryResult{
				Answer:   "",
				Evidence: evidence,
				Usage:    usage,
				Error:    err.Error(),
			}, nil
		}

		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
		usage.EstimatedCost += deps.Prices.EstimateCost(deps.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if len(resp.ToolCalls) == 0 {
			return &QueryResult{Answer: resp.Content, Evidence: evidence, Usage: usage}, nil
		}

		assistantMsg := provider.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)

		for _, tc := range resp.ToolCalls {
			toolCallCount++
			args := map[string]any{}
			_ = json.Unmarshal([]byte(tc.Arguments), &args)

			var resultText string
			var ev models.EvidenceStep
			if cached, hit := memo.lookup(tc.Name, args, tc.Arguments); hit {
				resultText = cached
				ev = models.EvidenceStep{ToolName: tc.Name, Args: args, Summary: fmt.Sprintf("%s: (memoized) %s", tc.Name, summarizeToolResult(tc.Name, cached))}
			} else {
				resultText, ev = dispatchTool(ctx, deps, tc.Name, tc.Arguments)
				if !ev.IsError {
					memo.store(tc.Name, args, tc.Arguments, resultText)
				}
			}
			evidence = append(evidence, ev)
			messages = append(messages, provider.Message{Role: "tool", Content: resultText, ToolCallID: tc.ID})
		}

		if !critiqued && cfg.critiqueThreshold > 0 && toolCallCount >= cfg.critiqueThreshold {
			messages = append(messages, provider.Message{Role: "user", Content: critiquePrompt})
			critiqued = true
		}
	}

	// Exhausted the budget without a final text answer: force one last
	// tool-free call.
	resp, err := deps.Chat.Chat(ctx, provider.ChatRequest{Model: deps.Model, Messages: messages})
	if err != nil {
		return &QueryResult{Evidence: evidence, Usage: usage, Error: err.Error()}, nil
	}
	usage.PromptTokens += resp.Usage.PromptTokens
	usage.CompletionTokens += resp.Usage.CompletionTokens
	usage.EstimatedCost += deps.Prices.EstimateCost(deps.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return &QueryResult{Answer: resp.Content, Evidence: evidence, Usage: usage}, nil
}

func report(progress ProgressFunc, stage string, current, total int, subject string) {
	if progress == nil {
		return
	}
	progress(models.ProgressEvent{Stage: stage, Current: current, Total: total, Subject: subject})
}

func toProviderTools(specs []toolSpecEntry) []provider.ToolSpec {
	out := make([]provider.ToolSpec, len(specs))
	for i, s := range specs {
		out[i] = provider.ToolSpec{Name: s.provider, Description: s.desc, Parameters: s.params}
	}
	return out
}
