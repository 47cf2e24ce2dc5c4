package errors

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
)

// Middleware renders structured errors returned by handlers as JSON. Echo's
// own HTTP errors pass through to the echo error handler unchanged. observe
// is called once per error with its type and may be nil.
func Middleware(observe func(ErrorType)) echo.MiddlewareFunc {
	if observe == nil {
		observe = func(ErrorType) {}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				observe(FromHTTPStatus(httpErr.Code))
				return err
			}

			structured := AsStructured(err)
			observe(structured.Type)
			return render(c, structured)
		}
	}
}

// HTTPErrorHandler renders structured errors that reach echo's error handler
// directly, such as those raised from middleware via c.Error. Everything
// else goes to fallback.
func HTTPErrorHandler(observe func(ErrorType), fallback echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	if observe == nil {
		observe = func(ErrorType) {}
	}

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var structured *Error
		if !errors.As(err, &structured) {
			fallback(err, c)
			return
		}

		observe(structured.Type)
		if err := render(c, structured); err != nil {
			c.Logger().Error(err)
		}
	}
}

func render(c echo.Context, err *Error) error {
	logError(c, err)
	if err := c.JSON(err.HTTPStatus(), err.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func logError(c echo.Context, err *Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Fields {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	switch err.Type {
	case TypeValidation, TypeNotFound, TypeRateLimit:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	default:
		slog.ErrorContext(ctx, "Request failed", attrs...)
	}
}
