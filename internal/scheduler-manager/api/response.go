package api

import (
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/services"
	"studio-scheduler-service/pkg/logger"
)

// Envelope is the shape of every API response.
type Envelope struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

func ok(c *app.RequestContext, status int, data interface{}, warnings ...services.Warning) {
	env := Envelope{Success: true, Data: data}
	for _, w := range warnings {
		env.Warnings = append(env.Warnings, w.String())
	}
	c.JSON(status, env)
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(http.StatusBadRequest, Envelope{Error: msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrExternalIntegration:
		return http.StatusBadGateway
	case apperr.ErrFinancialIntegrity:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err. Unexpected errors are logged and hidden behind a generic
// message.
func (h *Handler) fail(c *app.RequestContext, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", logger.String("op", op), logger.String("path", string(c.Path())), logger.Error(err))
		c.JSON(status, Envelope{Error: "internal error"})
		return
	}
	c.JSON(status, Envelope{Error: err.Error()})
}
