package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/breeze4/indiseek/internal/retrieval"
	"github.com/breeze4/indiseek/pkg/models"
)

// toolResultCap bounds how much of one tool's output is appended as a
// tool-response message — the model sees a truncated tail notice rather
// than an unbounded blob.
const toolResultCap = 15000

// dispatchTool runs one model-requested tool call against deps.Registry
// and returns its text result plus an EvidenceStep summarizing it. Tool
// errors never abort the loop — they come back as evidence with IsError
// set, per the failure-mode contract.
func dispatchTool(ctx context.Context, deps Deps, name, argsJSON string) (string, models.EvidenceStep) {
	args := map[string]any{}
	_ = json.Unmarshal([]byte(argsJSON), &args)

	ev := models.EvidenceStep{ToolName: name, Args: args}

	result, err := deps.Registry.Call(ctx, deps.RepoID, name, args)
	if err != nil {
		ev.IsError = true
		ev.Summary = fmt.Sprintf("%s failed: %s", name, err.Error())
		return ev.Summary, ev
	}

	ev.Summary = summarizeToolResult(name, result)
	return truncateResult(result), ev
}

func summarizeToolResult(name, result string) string {
	const previewLen = 160
	r := []rune(result)
	if len(r) > previewLen {
		return fmt.Sprintf("%s: %s…", name, string(r[:previewLen]))
	}
	return fmt.Sprintf("%s: %s", name, result)
}

func truncateResult(s string) string {
	if len(s) <= toolResultCap {
		return s
	}
	return s[:toolResultCap] + "\n…(truncated)"
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func toProviderToolsFromRegistry(infos []retrieval.ToolInfo) []toolSpecEntry {
	out := make([]toolSpecEntry, len(infos))
	for i, info := range infos {
		out[i] = toolSpecEntry{provider: info.Name, desc: info.Description, params: info.Parameters}
	}
	return out
}

type toolSpecEntry struct {
	provider string
	desc     string
	params   map[string]any
}
