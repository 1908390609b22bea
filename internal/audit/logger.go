package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSignInSuccess   EventType = "signin_success"
	EventSignInFailure   EventType = "signin_failure"
	EventSignOut         EventType = "signout"
	EventSignOutAll      EventType = "signout_everywhere"
	EventAccountCreate   EventType = "account_create"
	EventChildCreate     EventType = "child_create"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventCodeGenerate    EventType = "code_generate"
	EventCodeRedeem      EventType = "code_redeem"
	EventCodeReject      EventType = "code_reject"
)

type Event struct {
	Type      EventType
	UserID    string
	ChildID   string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.ChildID != "" {
		logger = logger.With().Str("child_id", event.ChildID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// getClientIP relies on RealIP having rewritten RemoteAddr from the proxy
// headers.
func getClientIP(r *http.Request) string {
	return r.RemoteAddr
}
