package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/resc/pkg/rule"
	"github.com/macropower/resc/pkg/watcher"
)

// ListRulesParams defines parameters for the list_rules tool.
type ListRulesParams struct {
	InputQueue string `json:"inputQueue,omitempty"`
}

// ListRulesResult contains the result of listing rules.
type ListRulesResult struct {
	Message  string        `json:"message"`
	Watchers []WatcherInfo `json:"watchers"`
}

// WatcherInfo describes one watched input queue.
type WatcherInfo struct {
	InputQueue string     `json:"inputQueue"`
	TakenQueue string     `json:"takenQueue"`
	Rules      []RuleInfo `json:"rules"`
}

// RuleInfo describes one rule.
type RuleInfo struct {
	Name    string `json:"name"`
	On      string `json:"on"`
	When    string `json:"when,omitempty"`
	Task    string `json:"task,omitempty"`
	Queue   string `json:"queue"`
	Set     string `json:"set,omitempty"`
	Sources int    `json:"sources"`
}

func newWatcherInfo(w *watcher.Watcher) WatcherInfo {
	info := WatcherInfo{
		InputQueue: w.InputQueue(),
		TakenQueue: w.TakenQueue(),
		Rules:      []RuleInfo{},
	}
	for _, r := range w.Rules().Rules() {
		info.Rules = append(info.Rules, newRuleInfo(r))
	}

	return info
}

func newRuleInfo(r *rule.Rule) RuleInfo {
	info := RuleInfo{
		Name:    r.Name(),
		On:      r.Pattern(),
		When:    r.When(),
		Queue:   r.Queue().Raw(),
		Sources: r.Sources(),
	}
	if t := r.Task(); t != nil {
		info.Task = t.Raw()
	}
	if t := r.Set(); t != nil {
		info.Set = t.Raw()
	}

	return info
}

func (s *Server) handleListRules(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ListRulesParams],
) (*mcp.CallToolResultFor[ListRulesResult], error) {
	result := ListRulesResult{Watchers: []WatcherInfo{}}

	rules := 0
	for _, w := range s.watchers.Watchers() {
		if params.Arguments.InputQueue != "" && w.InputQueue() != params.Arguments.InputQueue {
			continue
		}

		info := newWatcherInfo(w)
		rules += len(info.Rules)
		result.Watchers = append(result.Watchers, info)
	}

	result.Message = fmt.Sprintf("Found %d rules watching %d input queues.", rules, len(result.Watchers))

	return &mcp.CallToolResultFor[ListRulesResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
		StructuredContent: result,
	}, nil
}
