package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/smsgate/internal/fileserver"
	"github.com/smsgate/internal/flash"
	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/middleware"
	"github.com/smsgate/internal/model"
	"github.com/smsgate/internal/session"
	"github.com/smsgate/internal/view"
)

// multipartOverhead is added to the file limit to get the request body limit.
const multipartOverhead = 1 << 20

// UploadRecorder keeps an audit trail of accepted uploads.
type UploadRecorder interface {
	Record(ctx context.Context, u *model.Upload) error
}

// UploadHandler accepts one file per request and stores it under its client name.
type UploadHandler struct {
	flash.Helper
	renderer    view.Renderer
	store       fileserver.Store
	maxFileSize int64
	recorder    UploadRecorder
}

// NewUploadHandler builds the handler. maxFileSize <= 0 disables the size limits; recorder may be nil.
func NewUploadHandler(renderer view.Renderer, store fileserver.Store, maxFileSize int64, recorder UploadRecorder) *UploadHandler {
	return &UploadHandler{renderer: renderer, store: store, maxFileSize: maxFileSize, recorder: recorder}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.show(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *UploadHandler) show(w http.ResponseWriter, r *http.Request) {
	data := view.Data{}
	if msg, ok := h.Get(r, flashStatus); ok {
		data.Status = msg
	}
	writePage(w, h.renderer, http.StatusOK, view.PageUpload, data)
}

// submit redirects back to the form in every case; only a stored file sets a status flash.
func (h *UploadHandler) submit(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("upload.submit", time.Now())()
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}

	f, err := fileserver.FromRequest(r, "file", h.maxFileSize)
	if err != nil {
		logger.Debugf("upload: %v", err)
		redirect(w, r, pathUpload)
		return
	}
	if f.Error != fileserver.UploadErrOK {
		logger.Infof("upload rejected name=%q error=%s", f.Name, f.Error)
		redirect(w, r, pathUpload)
		return
	}

	src, err := f.Open()
	if err != nil {
		logger.Errorf("upload open %q: %v", f.Name, err)
		redirect(w, r, pathUpload)
		return
	}
	defer src.Close()

	location, err := h.store.Save(r.Context(), f.Name, src, f.Size)
	if err != nil {
		if errors.Is(err, fileserver.ErrInvalidArgument) {
			logger.Infof("upload refused name=%q: %v", f.Name, err)
		} else {
			logger.Errorf("upload save %q: %v", f.Name, err)
		}
		redirect(w, r, pathUpload)
		return
	}
	var sid string
	if sess := session.FromContext(r.Context()); sess != nil {
		sid = sess.ID()
	}
	logger.Infof("upload stored name=%q size=%d session_id=%s", f.Name, f.Size, middleware.MaskSessionID(sid))
	h.record(r, f, location)

	h.Set(r, flashStatus, msgUploadOK)
	redirect(w, r, pathUpload)
}

// record writes the audit entry. Failures are logged only.
func (h *UploadHandler) record(r *http.Request, f *fileserver.UploadedFile, location string) {
	if h.recorder == nil {
		return
	}
	u := &model.Upload{FileName: f.Name, Size: f.Size, Location: location, RemoteIP: remoteHost(r)}
	if sess := session.FromContext(r.Context()); sess != nil {
		u.Username, _ = sess.Get(sessionUsername)
	}
	if err := h.recorder.Record(context.WithoutCancel(r.Context()), u); err != nil {
		logger.Errorf("upload audit %q: %v", f.Name, err)
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
