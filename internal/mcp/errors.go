// Package mcp exposes docfuse search to agents over the Model Context
// Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// MCP error codes.
const (
	// ErrCodeIndexNotReady indicates nothing has been ingested yet.
	ErrCodeIndexNotReady = -32001

	// ErrCodeEmbeddingFailed indicates the query could not be embedded.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var fe *fuseerr.FuseError
	if errors.As(err, &fe) {
		return mapFuseError(fe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapFuseError(fe *fuseerr.FuseError) *MCPError {
	message := fe.Message
	if fe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", fe.Message, fe.Suggestion)
	}

	switch fe.Code {
	case fuseerr.ErrCodeIndexNotReady:
		return &MCPError{Code: ErrCodeIndexNotReady, Message: "Index not ready. Run 'docfuse ingest' first."}
	case fuseerr.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	}

	switch fe.Category {
	case fuseerr.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case fuseerr.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
