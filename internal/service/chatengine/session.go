package chatengine

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/metrics"
	"k8s.io/klog/v2"
)

// 默认参数
const (
	DefaultMaxNewTokens = 500
	DefaultHistoryLimit = 20
)

// Message 一条持久化的消息
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatTurn 一问一答及其引用文档
type ChatTurn struct {
	ChatID  string             `json:"chat_id"`
	UserID  string             `json:"user_id"`
	Human   Message            `json:"human"`
	AI      Message            `json:"ai"`
	Sources []*schema.Document `json:"sources"`
}

// HistoryStore 会话历史存储
type HistoryStore interface {
	// LoadHistory 返回最近 limit 条消息，按时间正序
	LoadHistory(ctx context.Context, chatID string, limit int) ([]*schema.Message, error)
	// SaveTurn 持久化一轮对话并返回带 ID 的结果
	SaveTurn(ctx context.Context, turn *ChatTurn) (*ChatTurn, error)
}

// SessionOptions 会话参数
type SessionOptions struct {
	ChatID       string
	UserID       string
	Workflow     *WorkflowConfiguration
	Compile      CompileOptions
	History      HistoryStore
	HistoryLimit int
	Streaming    bool
	Callbacks    *Callbacks
	// IncludeTrace 为 true 时在响应中附带 trace
	IncludeTrace bool
}

// QueryResponse 查询成功
type QueryResponse struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Turn      *ChatTurn `json:"turn"`
	TraceData TraceData `json:"trace_data,omitempty"`
}

// ErrorResponse 查询失败
type ErrorResponse struct {
	ErrorMessage string `json:"error_message"`
}

// Session 会话，构造时编译一次工作流
type Session struct {
	opts     SessionOptions
	workflow *CompiledWorkflow
}

// NewSession 创建会话，编译错误直接返回
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Compile.MaxTokens <= 0 {
		opts.Compile.MaxTokens = DefaultMaxNewTokens
	}
	workflow, err := Compile(ctx, opts.Workflow, opts.Compile)
	if err != nil {
		return nil, err
	}
	return &Session{opts: opts, workflow: workflow}, nil
}

// Workflow 已编译的工作流
func (s *Session) Workflow() *CompiledWorkflow {
	return s.workflow
}

// Query 执行一次问答，所有错误都转换为 ErrorResponse，两个返回值恰有一个非空
func (s *Session) Query(ctx context.Context, question string) (*QueryResponse, *ErrorResponse) {
	start := time.Now()
	resp, err := s.query(ctx, question)
	metrics.QueryDuration.WithLabelValues(metrics.Status(err)).Observe(metrics.Since(start))
	if err != nil {
		klog.ErrorS(err, "chat query failed", "chatId", s.opts.ChatID, "userId", s.opts.UserID, "question", question)
		return nil, &ErrorResponse{ErrorMessage: err.Error()}
	}
	klog.V(6).Infof("[Session] 查询完成: chat=%s, cost=%s", s.opts.ChatID, time.Since(start))
	return resp, nil
}

func (s *Session) query(ctx context.Context, question string) (*QueryResponse, error) {
	var history []*schema.Message
	if s.opts.History != nil {
		var err error
		history, err = s.opts.History.LoadHistory(ctx, s.opts.ChatID, s.opts.HistoryLimit)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.workflow.Execute(ctx, Input{Question: question, ChatHistory: history}, ExecuteOptions{
		Callbacks: s.opts.Callbacks,
		Streaming: s.opts.Streaming,
	})
	if err != nil {
		return nil, err
	}
	// 客户端已断开时不保存部分结果
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	turn := &ChatTurn{
		ChatID:  s.opts.ChatID,
		UserID:  s.opts.UserID,
		Human:   Message{Type: "human", Text: question, CreatedAt: now},
		AI:      Message{Type: "ai", Text: result.Answer(), CreatedAt: now.Add(time.Millisecond)},
		Sources: result.SourceDocuments,
	}
	if s.opts.History != nil {
		turn, err = s.opts.History.SaveTurn(ctx, turn)
		if err != nil {
			return nil, err
		}
	}

	resp := &QueryResponse{
		Question: question,
		Answer:   result.Answer(),
		Turn:     turn,
	}
	if s.opts.IncludeTrace {
		resp.TraceData = ResolveTrace(result, map[string]any{
			"chat_id": s.opts.ChatID,
			"user_id": s.opts.UserID,
		})
	}
	return resp, nil
}
