package guard

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrConflictingProfiles is returned at startup when more than one catch-all policy is active.
var ErrConflictingProfiles = errors.New("profiles \"insecure\" and \"secure\" are mutually exclusive")

type Error interface {
	GetCode() int
	Error() string
}

type erro struct {
	Code    int
	Message string
	Err     error
}

func JoinStrings(def string, strs ...string) string {
	if len(strs) < 1 {
		return def
	}
	return strings.Join(strs, " ")
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(erro{Code: http.StatusInternalServerError, Message: err.Error(), Err: err}, "Error")
}

func wrapErr(err Error) error {
	return errors.Wrap(erro{Code: err.GetCode(), Message: err.Error(), Err: err}, "Error")
}

func (e erro) Unwrap() error {
	return e.Err
}

func (e erro) GetCode() int {
	return e.Code
}

func (e erro) Error() string {
	return e.Message
}

// StatusCode extracts the HTTP status carried by err, defaulting to 500.
func StatusCode(err error) int {
	var er erro
	if errors.As(err, &er) {
		return er.GetCode()
	}
	return http.StatusInternalServerError
}

//======================================================================================================================

type BadRequest struct {
	message string
}

func (e BadRequest) GetCode() int {
	return http.StatusBadRequest
}

func (e BadRequest) Error() string {
	return e.message
}

func BadRequestErr(message ...string) error {
	return wrapErr(BadRequest{message: JoinStrings("Bad request", message...)})
}

func RequestRejectedErr(message ...string) error {
	return wrapErr(BadRequest{message: JoinStrings("Request rejected", message...)})
}

//======================================================================================================================

type UnprocessableEntityErr struct {
	message string
}

func (e UnprocessableEntityErr) GetCode() int {
	return http.StatusUnprocessableEntity
}

func (e UnprocessableEntityErr) Error() string {
	return e.message
}

func NewUnprocessableEntityErr(message ...string) error {
	return wrapErr(UnprocessableEntityErr{message: JoinStrings("Unprocessable entity", message...)})
}

//======================================================================================================================

type AccessDenied struct {
	message string
}

func (e AccessDenied) GetCode() int {
	return http.StatusForbidden
}

func (e AccessDenied) Error() string {
	return e.message
}

func AccessDeniedErr(message ...string) error {
	return wrapErr(AccessDenied{message: JoinStrings("Access denied", message...)})
}

func InvalidCsrfTokenErr(message ...string) error {
	return wrapErr(AccessDenied{message: JoinStrings("Invalid CSRF Token", message...)})
}

//======================================================================================================================

type Unauthorized struct {
	message string
}

func (e Unauthorized) GetCode() int {
	return http.StatusUnauthorized
}

func (e Unauthorized) Error() string {
	return e.message
}

func UnauthorizedErr(message ...string) error {
	return wrapErr(Unauthorized{message: JoinStrings("Unauthorized", message...)})
}

func AuthorizationRequiredErr(message ...string) error {
	return wrapErr(Unauthorized{message: JoinStrings("Authorization required", message...)})
}

func InvalidCredentialsErr(message ...string) error {
	return wrapErr(Unauthorized{message: JoinStrings("Bad credentials", message...)})
}

//======================================================================================================================

type ObjectNotFound struct {
	message string
}

func (e ObjectNotFound) GetCode() int {
	return http.StatusNotFound
}

func (e ObjectNotFound) Error() string {
	return e.message
}

func ObjectNotFoundErr(message ...string) error {
	return wrapErr(ObjectNotFound{message: JoinStrings("Not found", message...)})
}
