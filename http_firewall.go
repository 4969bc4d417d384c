package guard

import (
	"fmt"
	"net/http"
	"strings"
)

type Firewall interface {
	Handle(req Request, next Handler) Response
	Config() FirewallConfig
}

type firewall struct {
	config         FirewallConfig
	authenticators []Authenticator
	entryPoint     AuthenticationEntryPoint
	dispatcher     EventDispatcher
}

func NewFirewall(config FirewallConfig, authenticators []Authenticator, entryPoint AuthenticationEntryPoint, dispatcher EventDispatcher) Firewall {
	return &firewall{
		config:         config,
		authenticators: authenticators,
		entryPoint:     entryPoint,
		dispatcher:     dispatcher,
	}
}

func (f *firewall) Config() FirewallConfig {
	return f.config
}

func (f *firewall) Handle(req Request, next Handler) Response {
	token, err := f.authenticate(req)
	if err != nil {
		dispatchEventSilent(req.Context(), f.dispatcher, AuthenticationFailureEvent{Request: req, Method: "basic", Err: err})
		return f.entryPoint.Commence(req, err)
	}
	if token != nil {
		req = withSecurityContext(req, token)
	}
	for _, area := range f.config {
		if !area.Matcher.Matches(req.Request) {
			continue
		}
		if !area.Secure || token != nil {
			return next(req)
		}
		dispatchEventSilent(req.Context(), f.dispatcher, AccessDeniedEvent{Area: area, Request: req})
		return f.entryPoint.Commence(req, AuthorizationRequiredErr())
	}
	return NewErrorJSONResponse(AccessDeniedErr())
}

func (f *firewall) authenticate(req Request) (AuthToken, error) {
	for _, a := range f.authenticators {
		token, err := a.Authenticate(req)
		if err != nil {
			return nil, err
		}
		if token != nil {
			if token.Provider() == "basic" {
				dispatchEventSilent(req.Context(), f.dispatcher, AuthenticationSuccessEvent{Request: req, Token: token})
			}
			return token, nil
		}
	}
	return nil, nil
}

// StrictPathFilter refuses paths that different layers could normalize differently and so slip
// past a path matcher. It runs first in the chain.
func StrictPathFilter(req Request, next Handler) Response {
	if err := rejectSuspiciousPath(req.Request); err != nil {
		return NewErrorJSONResponse(err)
	}
	return next(req)
}

var suspiciousEncodings = []string{"%2f", "%5c", "%2e", "%00", "%3b", "%25"}

func rejectSuspiciousPath(r *http.Request) error {
	raw := r.URL.EscapedPath()
	lower := strings.ToLower(raw)
	for _, enc := range suspiciousEncodings {
		if strings.Contains(lower, enc) {
			return RequestRejectedErr(fmt.Sprintf("the URL contained a potentially malicious string %q", enc))
		}
	}
	path := r.URL.Path
	switch {
	case strings.Contains(path, "//"):
		return RequestRejectedErr("the URL contained a potentially malicious string \"//\"")
	case strings.ContainsAny(path, ";\\\x00"):
		return RequestRejectedErr("the URL contained a potentially malicious character")
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "." || segment == ".." {
			return RequestRejectedErr("the URL was not normalized")
		}
	}
	return nil
}
