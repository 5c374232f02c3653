package prompt

import "fmt"

// Kind 默认模板类别
type Kind string

const (
	KindCondense       Kind = "condense"
	KindQuestionAnswer Kind = "questionAnswer"
	KindRouter         Kind = "router"
)

// 模板变量
const (
	VarQuestion    = "question"
	VarChatHistory = "chat_history"
	VarContext     = "context"
	VarWorkspaces  = "workspaces"
	VarRules       = "rules"
)

const condenseTemplate = `Given the following conversational dialog delimited by ''', and the "Followup Question" below, rephrase the "Followup Question" to be a concise standalone question in its original language. Without answering the question, return only the standalone question.

Dialog: '''
{{range $i, $m := .chat_history}}{{if $i}}
{{end}}{{if eq $m.Role "user"}}Human: {{else if eq $m.Role "assistant"}}Assistant: {{else if eq $m.Role "system"}}System: {{end}}{{$m.Content}}{{end}}
'''

Followup Question: {{.question}}
`

const questionAnswerTemplate = `Read the follow text inside <context></context> tags, and then answer the question based on the provided rules:

<context>
{{.context}}
</context>

Based on the context provided above, answer the following question based on these rules:
- only use knowledge from the provided context to answer the question
- always be truthful, honest, unbiased, and unharmful
- be concise, do not repeat the question or yourself in the answer
- Do NOT start your answer with phrases such as "Based on the context" or "According to the context", and just directly answer the question
- Always reply in plain text format only, never include html tags in your answer

After answering the question, double check that your answer follows the above rules before replying.

Question: {{.question}}
`

const routerTemplate = `Workspaces are able to answer user questions. The following text in <workspaces></workspaces> XML tags describes the purpose of each workspace to help you to determine what sorts of questions it can answer.

<workspaces>
{{range .workspaces}}workspaceId: {{.id}}, description: {{.description}}
{{end}}</workspaces>

{{.rules}}

Question: {{.question}}
`

// DefaultTemplate 返回类别对应的默认模板
func DefaultTemplate(kind Kind) string {
	switch kind {
	case KindQuestionAnswer:
		return questionAnswerTemplate
	case KindRouter:
		return routerTemplate
	default:
		return condenseTemplate
	}
}

// DefaultRouterRules 路由输出格式要求
func DefaultRouterRules(routeKey string) string {
	return fmt.Sprintf("Choose the workspace above which is most applicable to answer the question. "+
		"Answer in JSON format, with the key %q selecting the chosen workspace, and the key \"reasoning\" providing the reasons for your choice. "+
		"Answer only in JSON, with no additional text or context.", routeKey)
}
