package handler

import (
	"bytes"
	"net/http"

	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/view"
)

// Session keys and flash keys shared by the steps.
const (
	sessionUsername = "username"
	flashError      = "error"
	flashStatus     = "status"
)

// Flash texts shown to the visitor.
const (
	msgUsernameMissing = "Username not available in request"
	msgUploadOK        = "Image uploaded successfully"
	msgTooManyCodes    = "Too many codes requested. Try again later."
)

// Route paths the steps redirect between.
const (
	pathLogin  = "/login"
	pathVerify = "/verify"
	pathUpload = "/upload"
)

// redirect answers a form submission with 303 so the browser follows with GET.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func writePage(w http.ResponseWriter, renderer view.Renderer, status int, page string, data view.Data) {
	var buf bytes.Buffer
	if err := renderer.Render(&buf, page, data); err != nil {
		logger.Errorf("render %s: %v", page, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Debugf("write %s: %v", page, err)
	}
}

// renderError logs err and answers with the 500 error page. The visitor never sees err itself.
func renderError(w http.ResponseWriter, r *http.Request, renderer view.Renderer, err error) {
	logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	writePage(w, renderer, http.StatusInternalServerError, view.PageError, view.Data{})
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", "GET, POST")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
