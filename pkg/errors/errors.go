package errors

import (
	"errors"
	"fmt"
)

// ScriptCompileError is returned by a script environment when source code
// fails to compile. It is distinguishable from runtime failures so callers
// can disable a script once instead of retrying it every sample.
type ScriptCompileError struct {
	Diagnostic string
}

func NewScriptCompileError(diag string) *ScriptCompileError {
	return &ScriptCompileError{Diagnostic: diag}
}

func (e *ScriptCompileError) Error() string {
	return fmt.Sprintf("script compilation failed: %s", e.Diagnostic)
}

// ScriptRuntimeError is returned when a compiled script fails during
// execution.
type ScriptRuntimeError struct {
	Detail string
}

func NewScriptRuntimeError(detail string) *ScriptRuntimeError {
	return &ScriptRuntimeError{Detail: detail}
}

func (e *ScriptRuntimeError) Error() string {
	return fmt.Sprintf("script execution failed: %s", e.Detail)
}

// ScriptNotFoundError is returned when a named script is not present in the
// script library.
type ScriptNotFoundError struct {
	Name string
}

func NewScriptNotFoundError(name string) *ScriptNotFoundError {
	return &ScriptNotFoundError{Name: name}
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script %q not found", e.Name)
}

// ItemNotFoundError is returned when a collection item id cannot be resolved.
type ItemNotFoundError struct {
	ID uint32
}

func NewItemNotFoundError(id uint32) *ItemNotFoundError {
	return &ItemNotFoundError{ID: id}
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("collection item %d not found", e.ID)
}

// ScheduleSyntaxError is returned by the schedule matcher for malformed
// expressions.
type ScheduleSyntaxError struct {
	Expression string
	Detail     string
}

func NewScheduleSyntaxError(expr, detail string) *ScheduleSyntaxError {
	return &ScheduleSyntaxError{Expression: expr, Detail: detail}
}

func (e *ScheduleSyntaxError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %s", e.Expression, e.Detail)
}

func IsScriptCompileError(err error) bool {
	var e *ScriptCompileError
	return errors.As(err, &e)
}

func IsScriptRuntimeError(err error) bool {
	var e *ScriptRuntimeError
	return errors.As(err, &e)
}

func IsNotFoundError(err error) bool {
	var se *ScriptNotFoundError
	var ie *ItemNotFoundError
	return errors.As(err, &se) || errors.As(err, &ie)
}
