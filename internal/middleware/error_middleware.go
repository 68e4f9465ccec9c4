package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/logger"
)

// errorStatus maps an error onto an HTTP status and error code. The most
// specific sentinels come first; kinds catch everything else.
func errorStatus(err error) (int, dto.ErrorCode) {
	switch {
	case errors.Is(err, apperrors.ErrBookUnavailable):
		return http.StatusBadRequest, dto.ErrorCodeBookUnavailable
	case errors.Is(err, apperrors.ErrBookAlreadyAvailable):
		return http.StatusBadRequest, dto.ErrorCodeBookAlreadyAvailable
	case errors.Is(err, apperrors.ErrBorrowLimitReached):
		return http.StatusBadRequest, dto.ErrorCodeBorrowLimitReached
	case errors.Is(err, apperrors.ErrNotBorrower):
		return http.StatusForbidden, dto.ErrorCodeNotBorrower

	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials
	case errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, dto.ErrorCodeExpiredToken
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return http.StatusUnauthorized, dto.ErrorCodeTokenNotFound
	case apperrors.Is(err, apperrors.ErrTokenInvalid, apperrors.ErrTokenRevoked):
		return http.StatusUnauthorized, dto.ErrorCodeInvalidToken

	case errors.Is(err, apperrors.ErrResourceNotFound):
		return http.StatusNotFound, dto.ErrorCodeResourceNotFound
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.ErrorCodeForbidden
	case errors.Is(err, apperrors.ErrValidationFailed):
		return http.StatusBadRequest, dto.ErrorCodeValidationFailed
	case errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, dto.ErrorCodeResourceInvalid
	case errors.Is(err, apperrors.ErrLimitExceeded):
		return http.StatusBadRequest, dto.ErrorCodeBorrowLimitReached
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, dto.ErrorCodeResourceAlreadyExists
	}
	return http.StatusInternalServerError, dto.ErrorCodeInternalServer
}

// HandleAPIError writes the error envelope for err and aborts the request
func HandleAPIError(c *gin.Context, err error) {
	status, code := errorStatus(err)

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Unhandled error")
		c.AbortWithStatusJSON(status, dto.NewErrorResponse(
			dto.NewErrorDetail(code, "Internal server error").WithSeverity(dto.ErrorSeverityCritical)))
		return
	}

	detail := dto.NewErrorDetail(code, err.Error())
	if field := apperrors.FieldOf(err); field != "" {
		detail.WithField(field)
	}
	if details := apperrors.DetailsOf(err); details != nil {
		detail.WithDetails(details)
	}
	if status < http.StatusInternalServerError {
		detail.WithSeverity(dto.ErrorSeverityWarning)
	}

	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}

// HandleBindingError writes a 400 for a request that failed binding or validation
func HandleBindingError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
}
