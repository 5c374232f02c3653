package chatengine

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// 链状态中引擎依赖的键
const (
	KeyQuestion       = "question"
	KeyChatHistory    = "chat_history"
	KeyText           = "text"
	KeyInputDocuments = "input_documents"
	KeyRoutes         = "routes"
)

// ChainState 单次查询中在步骤间传递的状态，只由执行中的查询持有
// 未知键原样保存在 Extra 中
type ChainState struct {
	Question       string
	ChatHistory    []*schema.Message
	Text           string
	InputDocuments []*schema.Document
	Routes         map[string]any
	Extra          map[string]any
}

func newChainState(question string, history []*schema.Message) *ChainState {
	if history == nil {
		history = []*schema.Message{}
	}
	return &ChainState{
		Question:    question,
		ChatHistory: history,
		Extra:       map[string]any{},
	}
}

// Merge 合并步骤输出
func (s *ChainState) Merge(out map[string]any) {
	for k, v := range out {
		switch k {
		case KeyQuestion:
			s.Question = stringValue(v)
		case KeyText:
			s.Text = stringValue(v)
		case KeyChatHistory:
			if h, ok := v.([]*schema.Message); ok {
				s.ChatHistory = h
			}
		case KeyInputDocuments:
			if d, ok := v.([]*schema.Document); ok {
				s.InputDocuments = d
			}
		case KeyRoutes:
			if r, ok := v.(map[string]any); ok {
				s.Routes = r
			}
		default:
			s.Extra[k] = v
		}
	}
}

// Values 用于渲染提示词和 trace 的扁平视图
func (s *ChainState) Values() map[string]any {
	values := make(map[string]any, len(s.Extra)+5)
	for k, v := range s.Extra {
		values[k] = v
	}
	values[KeyQuestion] = s.Question
	values[KeyChatHistory] = s.ChatHistory
	if s.Text != "" {
		values[KeyText] = s.Text
	}
	if s.InputDocuments != nil {
		values[KeyInputDocuments] = s.InputDocuments
	}
	if s.Routes != nil {
		values[KeyRoutes] = s.Routes
	}
	return values
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
