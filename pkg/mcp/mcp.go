// Package mcp serves the resc rules over the Model Context Protocol.
package mcp

import "unicode/utf8"

const (
	name         = "resc"
	instructions = `MCP Server 'resc' exposes the rules that rewrite tasks between Redis queues.

When to use these tools:
- Understanding which rules watch which input queue
- Predicting what a task pushed to an input queue will produce, without touching Redis
- Inspecting the tasks recently produced by the running watchers

REQUIRED workflow:
1. Use 'list_rules' first to see every watched input queue and its rules
2. Use 'evaluate_task' with an EXACT input queue from 'list_rules' output and a candidate task
3. Use 'recent_events' to confirm what the watchers actually pushed
`
)

// truncateString truncates a string to at most maxLen bytes if needed,
// without splitting a rune.
func truncateString(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}

	return str[:cut] + "\n[OUTPUT TRUNCATED]"
}
