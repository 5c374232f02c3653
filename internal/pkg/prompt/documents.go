package prompt

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/utils"
)

const documentSeparator = "\n\n"

// DocumentName 文档展示名：metadata.source_location 的最后一段路径，缺失时为 "Document N"
func DocumentName(doc *schema.Document, index int) string {
	if doc != nil {
		if loc, ok := doc.MetaData["source_location"].(string); ok {
			loc = strings.TrimRight(loc, "/")
			if i := strings.LastIndex(loc, "/"); i >= 0 {
				loc = loc[i+1:]
			}
			if loc != "" {
				return loc
			}
		}
	}
	return fmt.Sprintf("Document %d", index+1)
}

// RenderDocuments 将文档按顺序拼接为提示词上下文，每个文档包含名称、元数据 JSON 和内容
func RenderDocuments(docs []*schema.Document) string {
	blocks := make([]string, 0, len(docs))
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		name := DocumentName(doc, i)
		raw := utils.ToJSON(PublicMetadata(doc.MetaData), "{}")
		blocks = append(blocks, fmt.Sprintf("%s Metadata: %s, %s Content: \"\"\"\n%s\n\"\"\"", name, raw, name, doc.Content))
	}
	return strings.Join(blocks, documentSeparator)
}

// PublicMetadata 去掉以下划线开头的内部键（如检索分数标记），返回新的 map，不修改入参
func PublicMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}
