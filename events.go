package guard

import (
	"context"

	logger "github.com/sirupsen/logrus"
)

const (
	AuthenticationSuccessEventName = "guard.authentication.success"
	AuthenticationFailureEventName = "guard.authentication.failure"
	LogoutEventName                = "guard.logout"
	AccessDeniedEventName          = "guard.access_denied"
	CsrfRejectedEventName          = "guard.csrf_rejected"
)

type AuthenticationSuccessEvent struct {
	Request Request
	Token   AuthToken
}

func (e AuthenticationSuccessEvent) GetName() string {
	return AuthenticationSuccessEventName
}

type AuthenticationFailureEvent struct {
	Request  Request
	Method   string
	Username string
	Err      error
}

func (e AuthenticationFailureEvent) GetName() string {
	return AuthenticationFailureEventName
}

type LogoutEvent struct {
	Request Request
	Session Session
}

func (e LogoutEvent) GetName() string {
	return LogoutEventName
}

type AccessDeniedEvent struct {
	Request Request
	Area    Area
}

func (e AccessDeniedEvent) GetName() string {
	return AccessDeniedEventName
}

type CsrfRejectedEvent struct {
	Request Request
}

func (e CsrfRejectedEvent) GetName() string {
	return CsrfRejectedEventName
}

// AuditSubscribers logs security events.
func AuditSubscribers() EventDispatcherConfig {
	return EventDispatcherConfig{
		{
			Event: AuthenticationSuccessEventName,
			Subscriber: func(_ context.Context, e Event) error {
				evt := e.(AuthenticationSuccessEvent)
				logger.WithFields(logger.Fields{
					"user":     evt.Token.User().GetUsername(),
					"roles":    evt.Token.User().GetRoles(),
					"provider": evt.Token.Provider(),
					"ip":       evt.Request.RemoteAddr,
				}).Info("authentication success")
				return nil
			},
		},
		{
			Event: AuthenticationFailureEventName,
			Subscriber: func(_ context.Context, e Event) error {
				evt := e.(AuthenticationFailureEvent)
				logger.WithFields(logger.Fields{
					"user":   evt.Username,
					"method": evt.Method,
					"ip":     evt.Request.RemoteAddr,
				}).Warnf("authentication failure: %v", evt.Err)
				return nil
			},
		},
		{
			Event: LogoutEventName,
			Subscriber: func(_ context.Context, e Event) error {
				evt := e.(LogoutEvent)
				logger.WithField("user", evt.Session.Username).Info("logout")
				return nil
			},
		},
		{
			Event: AccessDeniedEventName,
			Subscriber: func(_ context.Context, e Event) error {
				evt := e.(AccessDeniedEvent)
				logger.WithFields(logger.Fields{
					"uri": evt.Request.URL.RequestURI(),
					"ip":  evt.Request.RemoteAddr,
				}).Debug("authentication required")
				return nil
			},
		},
		{
			Event: CsrfRejectedEventName,
			Subscriber: func(_ context.Context, e Event) error {
				evt := e.(CsrfRejectedEvent)
				logger.WithFields(logger.Fields{
					"method": evt.Request.Method,
					"uri":    evt.Request.URL.RequestURI(),
					"ip":     evt.Request.RemoteAddr,
				}).Warn("invalid CSRF token")
				return nil
			},
		},
	}
}
