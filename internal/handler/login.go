package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smsgate/internal/flash"
	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/session"
	"github.com/smsgate/internal/users"
	"github.com/smsgate/internal/verification"
	"github.com/smsgate/internal/view"
)

// LoginHandler asks for an identifier and sends a code to the phone registered for it.
type LoginHandler struct {
	flash.Helper
	renderer view.Renderer
	gateway  verification.Gateway
	users    *users.Directory
}

func NewLoginHandler(renderer view.Renderer, gateway verification.Gateway, dir *users.Directory) *LoginHandler {
	return &LoginHandler{renderer: renderer, gateway: gateway, users: dir}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.show(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		methodNotAllowed(w)
	}
}

// show always drops the session marker, so every visit to the form starts over.
func (h *LoginHandler) show(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		sess.Unset(sessionUsername)
	}
	data := view.Data{}
	if msg, ok := h.Get(r, flashError); ok {
		data.Error = msg
	}
	writePage(w, h.renderer, http.StatusOK, view.PageLogin, data)
}

func (h *LoginHandler) submit(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("login.submit", time.Now())()
	cmd, ok := parseLoginCommand(w, r)
	if !ok || h.users.Empty() {
		redirect(w, r, pathLogin)
		return
	}
	phone, ok := h.users.Lookup(cmd.Username)
	if !ok {
		logger.Debugf("login: unknown identifier")
		redirect(w, r, pathLogin)
		return
	}

	res, err := h.gateway.SendCode(r.Context(), phone, verification.DefaultChannel)
	if errors.Is(err, verification.ErrRateLimited) {
		h.Set(r, flashError, msgTooManyCodes)
		redirect(w, r, pathLogin)
		return
	}
	if err != nil {
		renderError(w, r, h.renderer, fmt.Errorf("send code: %w", err))
		return
	}
	if res.Status != verification.StatusPending {
		renderError(w, r, h.renderer, fmt.Errorf("send code: %w %q", verification.ErrUnexpectedStatus, res.Status))
		return
	}

	sess := session.FromContext(r.Context())
	if sess == nil {
		renderError(w, r, h.renderer, errors.New("login: no session attached"))
		return
	}
	sess.Set(sessionUsername, cmd.Username)
	redirect(w, r, pathVerify)
}
