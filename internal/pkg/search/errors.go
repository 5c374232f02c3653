package search

import "fmt"

// RetrievalError 远程检索失败，包含上游状态
type RetrievalError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Failed to retrieve documents from URL %s: %v", e.URL, e.Err)
	}
	msg := fmt.Sprintf("Failed to retrieve documents from URL %s: %s", e.URL, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
