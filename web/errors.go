package web

import (
	"errors"
	"net/http"

	"github.com/cschleiden/go-approvals/api"
	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/workflow"
	"github.com/gin-gonic/gin"
)

var errBadRequest = errors.New("bad request")

func statusCode(err error) int {
	switch {
	case errors.Is(err, backend.ErrTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, errBadRequest),
		errors.Is(err, workflow.ErrNotAwaitingApproval),
		errors.Is(err, workflow.ErrNotSuspended),
		errors.Is(err, workflow.ErrThreadMismatch),
		errors.Is(err, workflow.ErrInvalidDecision):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// abort writes the error response. Details of internal errors are logged, not returned.
func (s *server) abort(c *gin.Context, err error) {
	code := statusCode(err)

	detail := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)

		detail = "internal server error"
	}

	c.AbortWithStatusJSON(code, api.Error{Detail: detail})
}
