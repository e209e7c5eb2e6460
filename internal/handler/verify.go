package handler

import (
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

// VerifyHandler checks the code sent by the login step.
type VerifyHandler struct {
	flash.Helper
	renderer view.Renderer
	gateway  verification.Gateway
	users    *users.Directory
}

func NewVerifyHandler(renderer view.Renderer, gateway verification.Gateway, dir *users.Directory) *VerifyHandler {
	return &VerifyHandler{renderer: renderer, gateway: gateway, users: dir}
}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.show(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *VerifyHandler) show(w http.ResponseWriter, r *http.Request) {
	var username string
	if sess := session.FromContext(r.Context()); sess != nil {
		username, _ = sess.Get(sessionUsername)
	}
	if username == "" {
		h.Set(r, flashError, msgUsernameMissing)
		redirect(w, r, pathLogin)
		return
	}
	writePage(w, h.renderer, http.StatusOK, view.PageVerify, view.Data{Username: username})
}

// submit trusts the posted username as long as it is in the directory; the session marker only gates the form.
func (h *VerifyHandler) submit(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("verify.submit", time.Now())()
	cmd, ok := parseVerifyCommand(w, r)
	if !ok {
		redirect(w, r, pathVerify)
		return
	}
	phone, ok := h.users.Lookup(cmd.Username)
	if !ok {
		redirect(w, r, pathVerify)
		return
	}

	res, err := h.gateway.CheckCode(r.Context(), phone, cmd.Code)
	if err != nil {
		renderError(w, r, h.renderer, fmt.Errorf("check code: %w", err))
		return
	}
	if res.Status != verification.StatusApproved {
		renderError(w, r, h.renderer, fmt.Errorf("check code: %w %q", verification.ErrUnexpectedStatus, res.Status))
		return
	}
	redirect(w, r, pathUpload)
}
