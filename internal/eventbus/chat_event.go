package eventbus

// ChatEventType 会话事件类型
type ChatEventType string

const (
	ChatEventStatus ChatEventType = "status"
	ChatEventChunk  ChatEventType = "chunk"
)

// ChatEvent 会话执行过程中的事件，按 chatID 订阅
type ChatEvent struct {
	Type          ChatEventType `json:"type"`
	ChatID        string        `json:"chat_id"`
	Operation     string        `json:"operation,omitempty"`
	Status        string        `json:"status,omitempty"`
	Message       string        `json:"message,omitempty"`
	ExecutionTime int64         `json:"execution_time_ms,omitempty"`
	Chunks        []string      `json:"chunks,omitempty"`
}

type ChatEventHandler = Handler[ChatEvent]
type ChatEventBus = Bus[string, ChatEvent]

func NewChatEventBus() *ChatEventBus {
	return NewBus[string, ChatEvent]()
}
