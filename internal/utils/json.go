package utils

import (
	"encoding/json"

	"k8s.io/klog/v2"
)

// ExtractJSON 从文本中提取第一个完整的 JSON 对象
// 忽略字符串字面量中的花括号，找不到时返回原始内容
func ExtractJSON(content string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range content {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				return content[start : i+1]
			}
		}
	}

	return content
}

// ToJSON 序列化为紧凑 JSON 字符串，失败时记录日志并返回 fallback
func ToJSON(v any, fallback string) string {
	raw, err := json.Marshal(v)
	if err != nil {
		klog.Warningf("[utils] JSON 序列化失败: type=%T, err=%v", v, err)
		return fallback
	}
	return string(raw)
}
