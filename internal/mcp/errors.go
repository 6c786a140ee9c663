// Package mcp implements the Model Context Protocol binding for the
// query engine: a search tool and a submit_feedback tool over the
// pipeline coordinator and feedback collector.
package mcp

import (
	"context"
	"errors"
	"fmt"

	engerrors "github.com/coderag/engine/internal/errors"
)

// Custom MCP error codes, in the vendor-extension range below -32000
// per the JSON-RPC spec.
const (
	ErrCodeBackendUnavailable = -32001
	ErrCodeTimeout            = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrInvalidParams = errors.New("invalid parameters")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a pipeline or feedback error into an MCPError.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var engErr *engerrors.EngineError
	if errors.As(err, &engErr) {
		return mapEngineError(engErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was canceled"}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: err.Error()}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Error()}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "internal server error"}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}

// mapEngineError maps one of the eight query-pipeline error kinds onto
// an MCPError. KindNoResults never reaches here: the coordinator
// returns it as a Response with Reason set, not as an error.
func mapEngineError(ae *engerrors.EngineError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch engerrors.KindOf(ae.Code) {
	case engerrors.KindInvalidQuery:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case engerrors.KindBackendUnavailable, engerrors.KindBackendOverloaded, engerrors.KindEmbeddingUnavailable:
		return &MCPError{Code: ErrCodeBackendUnavailable, Message: message}
	case engerrors.KindCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case engerrors.KindRankingInvariant, engerrors.KindConfigInvalid:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
