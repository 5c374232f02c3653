package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
)

// Client 服务端 REST API 客户端
type Client struct {
	BaseURL string
	UserID  string
	Admin   bool
	HTTP    *http.Client
}

func NewClient(baseURL, userID string, admin bool) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		UserID:  userID,
		Admin:   admin,
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Do 发送请求，响应体为 JSON 原文
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, c.UserID)
	if c.Admin {
		req.Header.Set(middleware.HeaderUserAdmin, "true")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.ErrorMessage != "" {
			return payload.ErrorMessage
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
