package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/metrics"
	"k8s.io/klog/v2"
)

const defaultLimit = 5

// MetadataKeyHasScore 标记检索服务返回了分数，用于区分真实的 0 分和缺失分数
const MetadataKeyHasScore = "_has_score"

// HasScore 文档是否带有检索服务返回的分数
func HasScore(doc *schema.Document) bool {
	if doc == nil {
		return false
	}
	has, _ := doc.MetaData[MetadataKeyHasScore].(bool)
	return has
}

// Config 远程检索配置
type Config struct {
	BaseURL     string
	WorkspaceID string
	// Limit 返回文档数量上限，<= 0 时为 5
	Limit int
	// ScoreThreshold 大于 0 时丢弃带分数且低于阈值的文档
	ScoreThreshold float64
	Filter         map[string]any
	ModelRefKey    string
	HTTPClient     *http.Client
}

// Retriever 调用远程检索服务的 eino Retriever 实现
type Retriever struct {
	endpoint string
	cfg      Config
	client   *http.Client
}

var _ retriever.Retriever = (*Retriever)(nil)

type searchRequest struct {
	Query       string         `json:"query"`
	K           int            `json:"k"`
	Filter      map[string]any `json:"filter,omitempty"`
	ModelRefKey string         `json:"modelRefKey,omitempty"`
}

type searchResponse struct {
	Documents []searchDocument `json:"documents"`
}

type searchDocument struct {
	PageContent string         `json:"pageContent"`
	Metadata    map[string]any `json:"metadata"`
	Score       *float64       `json:"score,omitempty"`
}

// NewRetriever 创建检索器，请求地址为 {BaseURL}workspace/{WorkspaceID}/search
func NewRetriever(cfg Config) *Retriever {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	return &Retriever{
		endpoint: Endpoint(cfg.BaseURL, cfg.WorkspaceID),
		cfg:      cfg,
		client:   client,
	}
}

// Endpoint 拼接工作空间检索地址
func Endpoint(baseURL, workspaceID string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + "workspace/" + url.PathEscape(workspaceID) + "/search"
}

func (r *Retriever) WorkspaceID() string {
	return r.cfg.WorkspaceID
}

// Retrieve 按相关度顺序返回文档，支持 retriever.WithTopK/WithScoreThreshold/WithDSLInfo 覆盖默认配置
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	limit := r.cfg.Limit
	threshold := r.cfg.ScoreThreshold
	options := retriever.GetCommonOptions(&retriever.Options{
		TopK:           &limit,
		ScoreThreshold: &threshold,
		DSLInfo:        r.cfg.Filter,
	}, opts...)

	body := searchRequest{
		Query:       query,
		K:           *options.TopK,
		Filter:      options.DSLInfo,
		ModelRefKey: r.cfg.ModelRefKey,
	}

	start := time.Now()
	docs, err := r.do(ctx, body)
	metrics.RetrievalDuration.WithLabelValues(metrics.Status(err)).Observe(metrics.Since(start))
	if err != nil {
		klog.Errorf("[Search] 检索失败: workspace=%s, err=%v", r.cfg.WorkspaceID, err)
		return nil, err
	}

	result := make([]*schema.Document, 0, len(docs))
	for i, d := range docs {
		if d.Score != nil && *options.ScoreThreshold > 0 && *d.Score < *options.ScoreThreshold {
			continue
		}
		doc := &schema.Document{
			ID:       documentID(d.Metadata, i),
			Content:  d.PageContent,
			MetaData: d.Metadata,
		}
		if doc.MetaData == nil {
			doc.MetaData = map[string]any{}
		}
		if d.Score != nil {
			doc = doc.WithScore(*d.Score)
			doc.MetaData[MetadataKeyHasScore] = true
		}
		result = append(result, doc)
	}
	metrics.RetrievedDocuments.Observe(float64(len(result)))
	klog.V(6).Infof("[Search] 检索完成: workspace=%s, k=%d, docs=%d, cost=%s", r.cfg.WorkspaceID, body.K, len(result), time.Since(start))
	return result, nil
}

func (r *Retriever) do(ctx context.Context, body searchRequest) ([]searchDocument, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &RetrievalError{URL: r.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &RetrievalError{URL: r.endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetrievalError{URL: r.endpoint, StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RetrievalError{
			URL:        r.endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &RetrievalError{URL: r.endpoint, StatusCode: resp.StatusCode, Status: resp.Status, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	return parsed.Documents, nil
}

func documentID(metadata map[string]any, index int) string {
	for _, key := range []string{"id", "source_location"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("%d", index)
}
