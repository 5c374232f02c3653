package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/metrics"
	"k8s.io/klog/v2"
)

// OutputParser 将模型输出解析为结构化结果
type OutputParser interface {
	Parse(text string) (any, error)
}

// ChunkHandler 接收流式输出片段
type ChunkHandler func(chunk string) error

type invokeOptions struct {
	parser  OutputParser
	onChunk ChunkHandler
}

type InvokeOption func(*invokeOptions)

// WithOutputParser 设置输出解析器，解析失败时 Invoke 返回 *ParseError
func WithOutputParser(p OutputParser) InvokeOption {
	return func(o *invokeOptions) {
		o.parser = p
	}
}

// WithStreaming 使用流式接口调用模型，每个片段回调一次
func WithStreaming(fn ChunkHandler) InvokeOption {
	return func(o *invokeOptions) {
		o.onChunk = fn
	}
}

// Invoker 封装一个已配置的对话模型
type Invoker struct {
	chatModel model.BaseChatModel
	name      string
	modelOpts []model.Option
}

// NewInvoker 创建模型调用器，modelOpts 在每次调用时传给模型
func NewInvoker(chatModel model.BaseChatModel, name string, modelOpts ...model.Option) *Invoker {
	return &Invoker{
		chatModel: chatModel,
		name:      name,
		modelOpts: modelOpts,
	}
}

func (i *Invoker) Name() string {
	return i.name
}

// Invoke 调用模型并返回 {outputKey: 输出}
// 设置了解析器时输出为解析结果，否则为原始文本
func (i *Invoker) Invoke(ctx context.Context, messages []*schema.Message, outputKey string, opts ...InvokeOption) (map[string]any, error) {
	o := &invokeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	mode := "generate"
	if o.onChunk != nil {
		mode = "stream"
	}

	start := time.Now()
	var text string
	var err error
	if o.onChunk != nil {
		text, err = i.stream(ctx, messages, o.onChunk)
	} else {
		text, err = i.generate(ctx, messages)
	}
	metrics.ModelInvocationDuration.WithLabelValues(i.name, mode, metrics.Status(err)).Observe(metrics.Since(start))
	if err != nil {
		klog.Errorf("[Invoker] 模型调用失败: model=%s, mode=%s, err=%v", i.name, mode, err)
		return nil, err
	}
	klog.V(8).Infof("[Invoker] 模型输出: model=%s, output=%s", i.name, text)

	if o.parser == nil {
		return map[string]any{outputKey: text}, nil
	}
	parsed, err := o.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return map[string]any{outputKey: parsed}, nil
}

func (i *Invoker) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	resp, err := i.chatModel.Generate(ctx, messages, i.modelOpts...)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty response from model")
	}
	return resp.Content, nil
}

func (i *Invoker) stream(ctx context.Context, messages []*schema.Message, onChunk ChunkHandler) (string, error) {
	reader, err := i.chatModel.Stream(ctx, messages, i.modelOpts...)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var sb strings.Builder
	chunks := 0
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		chunks++
		sb.WriteString(msg.Content)
		if err := onChunk(msg.Content); err != nil {
			return "", err
		}
	}
	klog.V(6).Infof("[Invoker] 流式输出完成: model=%s, chunks=%d", i.name, chunks)
	return sb.String(), nil
}
