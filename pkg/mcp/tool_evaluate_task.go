package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/resc/pkg/log"
)

const maxErrorLen = 500

// EvaluateTaskParams defines parameters for the evaluate_task tool.
type EvaluateTaskParams struct {
	Queue string `json:"queue"`
	Task  string `json:"task"`
}

// EvaluateTaskResult contains the rules matching a task and the tasks they
// would produce.
type EvaluateTaskResult struct {
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
	Matches []MatchInfo `json:"matches"`
	Results int         `json:"results"`
}

// MatchInfo describes one matching rule.
type MatchInfo struct {
	Rule    string       `json:"rule"`
	Results []ResultInfo `json:"results"`
}

// ResultInfo describes one produced task.
type ResultInfo struct {
	Task  string `json:"task"`
	Queue string `json:"queue"`
	Set   string `json:"set,omitempty"`
}

func (s *Server) handleEvaluateTask(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[EvaluateTaskParams],
) (*mcp.CallToolResultFor[EvaluateTaskResult], error) {
	args := params.Arguments
	result := EvaluateTaskResult{Matches: []MatchInfo{}}

	w := s.findWatcher(args.Queue)
	if w == nil {
		result.Message = fmt.Sprintf("INVALID INPUT ERROR: Input queue %q is not watched. Use an EXACT inputQueue from the list_rules tool.", args.Queue)

		return newEvaluateTaskResult(result, true), nil
	}

	matches, err := w.Rules().Expand(ctx, args.Task)

	for _, m := range matches {
		info := MatchInfo{Rule: m.Rule.Name(), Results: []ResultInfo{}}
		for _, r := range m.Results {
			ri := ResultInfo{Task: r.Task, Queue: r.Queue}
			if r.Set != nil {
				ri.Set = *r.Set
			}

			info.Results = append(info.Results, ri)
		}

		result.Results += len(info.Results)
		result.Matches = append(result.Matches, info)
	}

	if err != nil {
		log.WithContext(ctx).DebugContext(ctx, "evaluate task failed",
			slog.String("queue", args.Queue),
			slog.Any("err", err),
		)

		result.Error = truncateString(err.Error(), maxErrorLen)
		result.Message = fmt.Sprintf("Evaluation failed after %d matching rules; the watcher would leave this task in the taken queue.", len(result.Matches))

		return newEvaluateTaskResult(result, true), nil
	}

	result.Message = fmt.Sprintf("%d rules matched, producing %d tasks.", len(result.Matches), result.Results)

	return newEvaluateTaskResult(result, false), nil
}

func newEvaluateTaskResult(result EvaluateTaskResult, isErr bool) *mcp.CallToolResultFor[EvaluateTaskResult] {
	return &mcp.CallToolResultFor[EvaluateTaskResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
		StructuredContent: result,
		IsError:           isErr,
	}
}
