package graphql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/lireddit"
)

// Error is the error type resolvers return. graph-gophers copies Error() into
// the response message and Extensions() into extensions.
type Error struct {
	Code    lireddit.Code
	Message string
	Fields  map[string][]string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": string(e.Code)}
	if len(e.Fields) > 0 {
		ext["fields"] = e.Fields
	}
	return ext
}

// NewError converts an engine error into a client-facing Error.
func NewError(err error) *Error {
	var gqlErr *Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	out := &Error{
		Code:    lireddit.ErrorCode(err),
		Message: lireddit.PublicMessage(err),
		cause:   err,
	}
	var verr *lireddit.ValidationError
	if errors.As(err, &verr) {
		out.Fields = verr.Messages()
	}
	return out
}

type errorPresenter struct {
	logger *slog.Logger
}

// present logs internal errors before they are masked.
func (p *errorPresenter) present(ctx context.Context, err error) error {
	out := NewError(err)
	if out.Code == lireddit.CodeInternal {
		p.logger.ErrorContext(ctx, "graphql resolver failed",
			"client_ip", lireddit.ClientIPFromContext(ctx),
			"error", err,
		)
	}
	return out
}

// panicLogger implements the graph-gophers log.Logger interface.
type panicLogger struct {
	logger *slog.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.logger.ErrorContext(ctx, "graphql resolver panic",
		"panic", fmt.Sprint(value),
		"client_ip", lireddit.ClientIPFromContext(ctx),
	)
}
