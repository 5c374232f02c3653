package chatengine

import (
	"encoding/json"
	"fmt"
)

// TraceErrorKey trace 组装失败时返回的唯一字段
const TraceErrorKey = "__resolve_trace_error"

// TraceData 诊断数据，只返回给管理员
type TraceData map[string]any

type traceSnapshot struct {
	OriginalQuestion string         `json:"original_question"`
	ChainValues      map[string]any `json:"chain_values"`
	ChatHistory      any            `json:"chat_history"`
	SourceDocuments  any            `json:"source_documents"`
	Result           map[string]any `json:"result"`
	Visited          []VisitedStep  `json:"visited_steps"`
}

// Trace 组装执行 trace，失败时返回错误而不影响查询结果
func (r *Result) Trace() (trace TraceData, err error) {
	defer func() {
		if p := recover(); p != nil {
			trace, err = nil, fmt.Errorf("trace assembly panicked: %v", p)
		}
	}()

	snapshot := traceSnapshot{
		OriginalQuestion: r.Input.Question,
		ChainValues: map[string]any{
			KeyQuestion:    r.Input.Question,
			KeyChatHistory: r.Input.ChatHistory,
		},
		ChatHistory:     r.Input.ChatHistory,
		SourceDocuments: r.SourceDocuments,
		Result:          r.State.Values(),
		Visited:         r.Visited,
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	if err := json.Unmarshal(raw, &trace); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	return trace, nil
}

// ResolveTrace 在 trace 中补充会话信息，失败时降级为只包含错误信息的 trace
func ResolveTrace(result *Result, extra map[string]any) TraceData {
	trace, err := result.Trace()
	if err != nil {
		return TraceData{TraceErrorKey: err.Error()}
	}
	for k, v := range extra {
		trace[k] = v
	}
	return trace
}
