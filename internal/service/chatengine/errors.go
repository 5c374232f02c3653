package chatengine

import (
	"fmt"
	"strings"
)

// CompilationError 工作流无法编译，在执行前返回
type CompilationError struct {
	StepType    StepType
	WorkspaceID string
	Reason      string
	Err         error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("compile %s step (workspace %q): %s", e.StepType, e.WorkspaceID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// RoutingError 路由输出缺少路由字段、无法解析或没有匹配的路由
type RoutingError struct {
	RouteKey    string
	Value       string
	ValidRoutes []string
	Err         error
}

func (e *RoutingError) Error() string {
	valid := strings.Join(e.ValidRoutes, ", ")
	switch {
	case e.Err != nil:
		return fmt.Sprintf("Routing error! Unable to parse response as { %q: \"<routeKey>\" }: %v. Valid routes were: %s", e.RouteKey, e.Err, valid)
	case e.Value == "":
		return fmt.Sprintf("Routing error! Response was not of the required output format { %q: \"<routeKey>\" }. Valid routes were: %s", e.RouteKey, valid)
	default:
		return fmt.Sprintf("No route found matching %q. Valid routes were: %s", e.Value, valid)
	}
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

// ModelInvocationError 模型调用失败
type ModelInvocationError struct {
	StepType    StepType
	WorkspaceID string
	Model       string
	Err         error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s failed in %s step (workspace %q): %v", e.Model, e.StepType, e.WorkspaceID, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}
