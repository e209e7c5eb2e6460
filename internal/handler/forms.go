package handler

import (
	"errors"
	"net/http"
)

// maxFormBody bounds login and verify submissions, which carry two short fields.
const maxFormBody = 1 << 20

type loginCommand struct {
	Username string
}

type verifyCommand struct {
	Username string
	Code     string
}

// parseBody fills r.PostForm from a urlencoded or a multipart body.
func parseBody(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	err := r.ParseMultipartForm(maxFormBody)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// postField returns a single non-empty body field. Absent, empty and repeated fields all fail.
func postField(r *http.Request, name string) (string, bool) {
	vals, ok := r.PostForm[name]
	if !ok || len(vals) != 1 || vals[0] == "" {
		return "", false
	}
	return vals[0], true
}

func parseLoginCommand(w http.ResponseWriter, r *http.Request) (loginCommand, bool) {
	if err := parseBody(w, r); err != nil {
		return loginCommand{}, false
	}
	username, ok := postField(r, "username")
	return loginCommand{Username: username}, ok
}

func parseVerifyCommand(w http.ResponseWriter, r *http.Request) (verifyCommand, bool) {
	if err := parseBody(w, r); err != nil {
		return verifyCommand{}, false
	}
	username, ok := postField(r, "username")
	if !ok {
		return verifyCommand{}, false
	}
	code, ok := postField(r, "verification_code")
	if !ok {
		return verifyCommand{}, false
	}
	return verifyCommand{Username: username, Code: code}, true
}
