// Package flash implements one-shot messages that survive exactly one redirect.
// Messages written during request N are stored in the session and handed to request N+1,
// which pops them from the session on load.
package flash

import (
	"context"
	"net/http"
	"strings"

	"github.com/smsgate/internal/session"
)

// keyPrefix marks the session entries holding pending messages, one entry per message key.
const keyPrefix = "__flash."

// Messages is the flash collaborator of one request.
type Messages struct {
	sess    *session.Session
	current map[string]string
}

// Load takes the messages left by the previous request out of sess, read or not.
func Load(sess *session.Session) *Messages {
	m := &Messages{sess: sess, current: map[string]string{}}
	for _, k := range sess.Keys() {
		name, ok := strings.CutPrefix(k, keyPrefix)
		if !ok {
			continue
		}
		if v, ok := sess.Pop(k); ok {
			m.current[name] = v
		}
	}
	return m
}

// Flash stores value under key for the next request.
func (m *Messages) Flash(key, value string) {
	m.sess.Set(keyPrefix+key, value)
}

// GetFlash returns a value flashed by the previous request.
func (m *Messages) GetFlash(key string) (string, bool) {
	v, ok := m.current[key]
	return v, ok
}

type contextKey struct{}

func NewContext(ctx context.Context, m *Messages) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext returns nil outside the flash middleware.
func FromContext(ctx context.Context) *Messages {
	m, _ := ctx.Value(contextKey{}).(*Messages)
	return m
}

// Helper gives handlers flash access through the request.
// Both methods tolerate a request without a flash collaborator.
type Helper struct{}

func (Helper) Set(r *http.Request, key, msg string) {
	if m := FromContext(r.Context()); m != nil {
		m.Flash(key, msg)
	}
}

func (Helper) Get(r *http.Request, key string) (string, bool) {
	m := FromContext(r.Context())
	if m == nil {
		return "", false
	}
	return m.GetFlash(key)
}
