package guard

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

const (
	AcceptHeaderName             = "Accept"
	ContentTypeHeaderName        = "Content-Type"
	LocationHeaderName           = "Location"
	SetCookieHeaderName          = "Set-Cookie"
	ApplicationJsonHeaderVal     = "application/json"
	ApplicationTextHtmlHeaderVal = "text/html; charset=utf-8"
)

type response struct {
	bytes   []byte
	error   error
	code    int
	headers Headers
}

func NewResponse(bytes []byte, error error, code int, headers ...Header) Response {
	return &response{bytes: bytes, error: error, code: code, headers: headers}
}

func NewHtmlResponse(bytes []byte, code int) Response {
	return &response{bytes: bytes, code: code, headers: Headers{
		{
			Name:  ContentTypeHeaderName,
			Value: ApplicationTextHtmlHeaderVal,
		},
	}}
}

func NewErrorHtmlResponse(err error) Response {
	return &response{bytes: []byte(err.Error()), error: err, code: StatusCode(err), headers: Headers{
		{
			Name:  ContentTypeHeaderName,
			Value: ApplicationTextHtmlHeaderVal,
		},
	}}
}

// NewRedirectResponse answers with 302 Found so that a POST is followed up with a GET.
func NewRedirectResponse(location string, headers ...Header) Response {
	return NewResponse(nil, nil, http.StatusFound, append(headers, Header{
		Name:  LocationHeaderName,
		Value: location,
	})...)
}

func NewNoContentResponse() Response {
	return NewResponse(nil, nil, http.StatusNoContent)
}

func (r response) GetBytes() ([]byte, error) {
	return r.bytes, nil
}

func (r response) GetError() error {
	return r.error
}

func (r response) GetCode() int {
	return r.code
}

func (r response) GetHeaders() Headers {
	return r.headers
}

type jsonResponse struct {
	data    interface{}
	error   error
	code    int
	headers Headers
}

type JsonResponseFormat struct {
	Code    int         `json:"code"`
	Payload interface{} `json:"payload"`
}

func NewJsonResponse(data interface{}, code int, error error, headers ...Header) Response {
	headers = append(headers, Header{
		Name:  ContentTypeHeaderName,
		Value: ApplicationJsonHeaderVal,
	})
	return jsonResponse{data: data, code: code, error: error, headers: headers}
}

func (r jsonResponse) GetBytes() ([]byte, error) {
	return json.Marshal(JsonResponseFormat{
		Code:    r.code,
		Payload: r.data,
	})
}

func (r jsonResponse) GetError() error {
	return r.error
}

func (r jsonResponse) GetCode() int {
	return r.code
}

func (r jsonResponse) GetHeaders() Headers {
	return r.headers
}

func NewErrorJSONResponse(e error, headers ...Header) Response {
	if e == nil {
		return NewJsonResponse(nil, http.StatusOK, e, headers...)
	}
	var errs validation.Errors
	if ok := errors.As(e, &errs); ok {
		return NewJsonResponse(errs, http.StatusUnprocessableEntity, NewUnprocessableEntityErr(), headers...)
	}
	return NewJsonResponse(e.Error(), StatusCode(e), e, headers...)
}

type decoratedResponse struct {
	Response
	extra Headers
}

func (r decoratedResponse) GetHeaders() Headers {
	return append(append(Headers{}, r.Response.GetHeaders()...), r.extra...)
}

// WithHeaders appends headers to an already built response.
func WithHeaders(resp Response, headers ...Header) Response {
	if len(headers) == 0 {
		return resp
	}
	return decoratedResponse{Response: resp, extra: headers}
}

func CookieHeader(cookie *http.Cookie) Header {
	return Header{Name: SetCookieHeaderName, Value: cookie.String()}
}
