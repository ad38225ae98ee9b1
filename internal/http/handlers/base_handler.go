// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/modules/notification"
	"gigmarket/internal/modules/order"
	"gigmarket/internal/modules/payment"
	"gigmarket/internal/modules/rating"
	"gigmarket/internal/modules/review"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the uuid-shaped ids the stores issue, plus external refs.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// pathID reads a path parameter and writes 400 when it is malformed.
func pathID(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return v, true
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

var statusByErr = []struct {
	err    error
	status int
}{
	{order.ErrNotFound, http.StatusNotFound},
	{order.ErrForbidden, http.StatusForbidden},
	{order.ErrInvalidTransition, http.StatusConflict},
	{order.ErrInvalidState, http.StatusUnprocessableEntity},
	{order.ErrConflict, http.StatusConflict},
	{order.ErrBadRequest, http.StatusBadRequest},

	{review.ErrNotFound, http.StatusNotFound},
	{review.ErrForbidden, http.StatusForbidden},
	{review.ErrInvalidState, http.StatusUnprocessableEntity},
	{review.ErrConflict, http.StatusConflict},
	{review.ErrBadRequest, http.StatusBadRequest},

	{rating.ErrNotFound, http.StatusNotFound},
	{rating.ErrBadRequest, http.StatusBadRequest},

	{notification.ErrNotFound, http.StatusNotFound},
	{notification.ErrBadRequest, http.StatusBadRequest},

	{payment.ErrInvalidSignature, http.StatusBadRequest},
	{payment.ErrBadPayload, http.StatusBadRequest},
}

// writeServiceError maps module sentinel errors to HTTP statuses.
// Anything unrecognised is a 500 with a generic body.
func writeServiceError(c *gin.Context, err error) {
	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			writeError(c, m.status, err.Error())
			return
		}
	}
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal error")
}
