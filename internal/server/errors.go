package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stopmidnight/taskboard/internal/task"
	"github.com/stopmidnight/taskboard/internal/undo"
)

// Machine-readable error kinds returned in the "kind" field.
const (
	KindInvalidFilename = "invalid_filename"
	KindInvalidStatus   = "invalid_status"
	KindNotFound        = "not_found"
	KindConflict        = "conflict"
	KindPayloadTooLarge = "payload_too_large"
	KindInvalidJSON     = "invalid_json"
	KindInvalidRequest  = "invalid_request"
	KindInternal        = "internal"
)

var (
	errFilenameRequired = errors.New("filename is required")
	errPayloadTooLarge  = errors.New("payload too large")
	errInvalidJSON      = errors.New("invalid json")
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	ETag  string `json:"etag,omitempty"`
}

// classify maps an error to its HTTP status and response body.
func classify(err error) (int, errorBody) {
	var conflict *task.ConflictError

	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, errorBody{Error: task.ErrConflict.Error(), Kind: KindConflict, ETag: conflict.Current}
	case errors.Is(err, task.ErrConflict):
		return http.StatusConflict, errorBody{Error: task.ErrConflict.Error(), Kind: KindConflict}
	case errors.Is(err, errPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Error: err.Error(), Kind: KindPayloadTooLarge}
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Kind: KindInvalidJSON}
	case errors.Is(err, errFilenameRequired), errors.Is(err, task.ErrTitleRequired):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Kind: KindInvalidRequest}
	case errors.Is(err, task.ErrInvalidStatus):
		return http.StatusBadRequest, errorBody{Error: task.ErrInvalidStatus.Error(), Kind: KindInvalidStatus}
	case errors.Is(err, task.ErrInvalidFilename):
		return http.StatusBadRequest, errorBody{Error: task.ErrInvalidFilename.Error(), Kind: KindInvalidFilename}
	case errors.Is(err, undo.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: undo.ErrNotFound.Error(), Kind: KindNotFound}
	case errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: task.ErrNotFound.Error(), Kind: KindNotFound}
	default:
		return http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: KindInternal}
	}
}

// fail writes err as a JSON error response. Internal errors are also
// returned to echo so the request logger records them.
func fail(c echo.Context, err error) error {
	status, body := classify(err)

	if writeErr := c.JSON(status, body); writeErr != nil {
		return writeErr
	}

	if status == http.StatusInternalServerError {
		return err
	}

	return nil
}
