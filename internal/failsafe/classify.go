// Package failsafe classifies handler errors into stable client responses and
// persists a sanitized record of each one without ever failing the request a
// second time.
package failsafe

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	dErrors "medgate/pkg/domain-errors"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/sentinel"
)

// Error types recorded on SystemErrorRecord.ErrorType.
const (
	TypeValidation     = "VALIDATION_ERROR"
	TypeAuthentication = "AUTHENTICATION_ERROR"
	TypeCast           = "CAST_ERROR"
	TypeConflict       = "CONFLICT_ERROR"
	TypeReference      = "REFERENCE_ERROR"
	TypeMissingField   = "MISSING_FIELD_ERROR"
	TypeHTTP           = "HTTP_ERROR"
	TypeSystem         = "SYSTEM_ERROR"
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateNotNullViolation    = "23502"
)

const msgInternal = "Internal server error"

// Classification is the client-facing view of an error.
type Classification struct {
	Type    string
	Status  int
	Code    dErrors.Code
	Message string
}

// StatusCoder is implemented by errors that carry their own HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Classify maps err to a Classification. The first matching rule wins:
// validation, authentication, cast, unique, foreign key, not-null, explicit
// status, then system error.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Type: TypeSystem, Status: http.StatusInternalServerError, Code: dErrors.CodeInternal, Message: msgInternal}
	}

	if msg, ok := validationMessage(err); ok {
		return Classification{Type: TypeValidation, Status: http.StatusBadRequest, Code: dErrors.CodeValidation, Message: msg}
	}
	if msg, ok := authMessage(err); ok {
		return Classification{Type: TypeAuthentication, Status: http.StatusUnauthorized, Code: dErrors.CodeUnauthorized, Message: msg}
	}
	if isCastError(err) {
		return Classification{Type: TypeCast, Status: http.StatusBadRequest, Code: dErrors.CodeInvalidID, Message: "invalid identifier"}
	}

	state := sqlState(err)
	switch {
	case state == sqlStateUniqueViolation || errors.Is(err, sentinel.ErrConflict) || dErrors.HasCode(err, dErrors.CodeConflict):
		return Classification{Type: TypeConflict, Status: http.StatusConflict, Code: dErrors.CodeConflict, Message: "already exists"}
	case state == sqlStateForeignKeyViolation || dErrors.HasCode(err, dErrors.CodeReference):
		return Classification{Type: TypeReference, Status: http.StatusBadRequest, Code: dErrors.CodeReference, Message: "invalid reference"}
	case state == sqlStateNotNullViolation || dErrors.HasCode(err, dErrors.CodeMissingField):
		return Classification{Type: TypeMissingField, Status: http.StatusBadRequest, Code: dErrors.CodeMissingField, Message: "required field missing"}
	}

	if status, ok := explicitStatus(err); ok {
		msg := dErrors.MessageOf(err)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return Classification{Type: TypeHTTP, Status: status, Code: dErrors.CodeOf(err), Message: msg}
	}

	return Classification{Type: TypeSystem, Status: http.StatusInternalServerError, Code: dErrors.CodeInternal, Message: msgInternal}
}

// SeverityFor ranks a response status.
func SeverityFor(status int) audit.Severity {
	switch {
	case status >= 500:
		return audit.SeverityHigh
	case status >= 400:
		return audit.SeverityMedium
	default:
		return audit.SeverityLow
	}
}

func validationMessage(err error) (string, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return "validation failed: " + strings.Join(fields, ", "), true
	}
	if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		if msg := dErrors.MessageOf(err); msg != "" {
			return msg, true
		}
		return "validation failed", true
	}
	return "", false
}

var authCodes = []dErrors.Code{
	dErrors.CodeAuthMissing,
	dErrors.CodeAuthInvalid,
	dErrors.CodeAuthInactive,
	dErrors.CodeUnauthorized,
}

var jwtErrors = []error{
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenExpired,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenInvalidClaims,
}

func authMessage(err error) (string, bool) {
	for _, code := range authCodes {
		if dErrors.HasCode(err, code) {
			return "authentication failed", true
		}
	}
	for _, target := range jwtErrors {
		if errors.Is(err, target) {
			return "authentication failed", true
		}
	}
	return "", false
}

func isCastError(err error) bool {
	if dErrors.HasCode(err, dErrors.CodeInvalidID) {
		return true
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if uuid.IsInvalidLengthError(e) || strings.HasPrefix(e.Error(), "invalid UUID") {
			return true
		}
	}
	return false
}

// sqlState extracts a SQLSTATE from either PostgreSQL driver.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:       http.StatusBadRequest,
	dErrors.CodeNotFound:         http.StatusNotFound,
	dErrors.CodePermissionDenied: http.StatusForbidden,
	dErrors.CodeRoleDenied:       http.StatusForbidden,
	dErrors.CodeRateLimited:      http.StatusTooManyRequests,
	dErrors.CodeNotImplemented:   http.StatusNotImplemented,
}

func explicitStatus(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if status := sc.StatusCode(); status >= 100 && status <= 599 {
			return status, true
		}
	}
	if status, ok := statusByCode[dErrors.CodeOf(err)]; ok {
		return status, true
	}
	return 0, false
}
