package error

import "net/http"

// GenericError is implemented by errors that carry their own HTTP mapping.
// The recovery middleware renders any of them as a ResponseData body.
type GenericError interface {
	ErrCode() string
	StatusCode() int
	Error() string
}

// ValidationError rejects a malformed request body or parameter.
type ValidationError string

func (err ValidationError) Error() string { return string(err) }
func (err ValidationError) ErrCode() string { return "VALIDATION_ERROR" }
func (err ValidationError) StatusCode() int { return http.StatusBadRequest }

// NotFoundError reports a missing action, account, setting or persona.
type NotFoundError string

func (err NotFoundError) Error() string { return string(err) }
func (err NotFoundError) ErrCode() string { return "NOT_FOUND_ERROR" }
func (err NotFoundError) StatusCode() int { return http.StatusNotFound }

// ConflictError reports a request that is valid but not allowed in the
// action's current status.
type ConflictError string

func (err ConflictError) Error() string { return string(err) }
func (err ConflictError) ErrCode() string { return "CONFLICT_ERROR" }
func (err ConflictError) StatusCode() int { return http.StatusConflict }

type InternalServerError string

func (err InternalServerError) Error() string { return string(err) }
func (err InternalServerError) ErrCode() string { return "INTERNAL_SERVER_ERROR" }
func (err InternalServerError) StatusCode() int { return http.StatusInternalServerError }
