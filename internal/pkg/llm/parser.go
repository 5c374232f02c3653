package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/utils"
)

// ParseError 模型输出无法解析
type ParseError struct {
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model output %q: %v", truncate(e.Output, 200), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// JSONObjectParser 从模型输出中提取 JSON 对象
type JSONObjectParser struct{}

func (JSONObjectParser) Parse(text string) (any, error) {
	candidate := strings.TrimSpace(utils.ExtractJSON(text))
	if !strings.HasPrefix(candidate, "{") {
		return nil, &ParseError{Output: text, Err: fmt.Errorf("no JSON object found")}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, &ParseError{Output: text, Err: err}
	}
	return obj, nil
}

// truncate 保留前 n 个字符，不切断多字节字符
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
