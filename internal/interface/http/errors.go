package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/pkg/apperror"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/response"
	"github.com/oksasatya/course-identity/pkg/validation"
)

// writeError maps a service error onto the API envelope. Internal and integrity
// failures are logged and answered with a generic message.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	switch kind {
	case apperror.KindInternal, apperror.KindIntegrity:
		if logger != nil {
			helpers.LogError(logger, "request failed", err, logrus.Fields{
				"request_id": c.GetString("request_id"),
				"kind":       kind,
				"path":       c.FullPath(),
			})
		}
		response.Send(c, response.Error[any](c, status, "internal error", nil))
		return
	case apperror.KindVerificationUnavailable:
		if logger != nil {
			logger.WithError(err).WithField("request_id", c.GetString("request_id")).Warn("verification provider unavailable")
		}
	case apperror.KindValidation:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.Send(c, response.Error[any](c, status, "invalid payload", validation.ToDetails(err)))
			return
		}
	}

	var ae *apperror.Error
	msg := http.StatusText(status)
	if errors.As(err, &ae) && ae.Msg != "" {
		msg = ae.Msg
	}
	response.Send(c, response.Error[any](c, status, msg, string(kind)))
}

func badPayload(c *gin.Context, err error) {
	response.Send(c, response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err)))
}
