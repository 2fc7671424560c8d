package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RecentEventsParams defines parameters for the recent_events tool.
type RecentEventsParams struct {
	Limit int `json:"limit,omitempty"`
}

// RecentEventsResult lists recently pushed tasks.
type RecentEventsResult struct {
	Message string      `json:"message"`
	Events  []EventInfo `json:"events"`
}

// EventInfo describes one pushed task.
type EventInfo struct {
	ID         string `json:"id"`
	Time       string `json:"time"`
	InputQueue string `json:"inputQueue"`
	InputTask  string `json:"inputTask"`
	Rule       string `json:"rule"`
	Task       string `json:"task"`
	Queue      string `json:"queue"`
	Set        string `json:"set,omitempty"`
}

func (s *Server) handleRecentEvents(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[RecentEventsParams],
) (*mcp.CallToolResultFor[RecentEventsResult], error) {
	result := RecentEventsResult{Events: []EventInfo{}}

	if s.history != nil {
		for _, e := range s.history.Recent(params.Arguments.Limit) {
			info := EventInfo{
				ID:         e.ID,
				Time:       e.Time.Format(time.RFC3339Nano),
				InputQueue: e.InputQueue,
				InputTask:  e.InputTask,
				Rule:       e.Rule,
				Task:       e.Task,
				Queue:      e.Queue,
			}
			if e.Set != nil {
				info.Set = *e.Set
			}

			result.Events = append(result.Events, info)
		}
	}

	result.Message = fmt.Sprintf("Found %d recent events.", len(result.Events))

	return &mcp.CallToolResultFor[RecentEventsResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
		StructuredContent: result,
	}, nil
}
