package fileserver

import (
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// UploadError is the transport status of an uploaded file.
type UploadError int

const (
	UploadErrOK UploadError = iota
	// UploadErrIniSize: the request exceeded the server-wide size limit.
	UploadErrIniSize
	// UploadErrFormSize: the file exceeded the per-file limit.
	UploadErrFormSize
	UploadErrPartial
	UploadErrNoFile
	UploadErrNoTmpDir
	UploadErrCantWrite
	UploadErrExtension
)

func (e UploadError) String() string {
	switch e {
	case UploadErrOK:
		return "ok"
	case UploadErrIniSize:
		return "ini_size"
	case UploadErrFormSize:
		return "form_size"
	case UploadErrPartial:
		return "partial"
	case UploadErrNoFile:
		return "no_file"
	case UploadErrNoTmpDir:
		return "no_tmp_dir"
	case UploadErrCantWrite:
		return "cant_write"
	case UploadErrExtension:
		return "extension"
	}
	return "unknown"
}

// ErrNoFilePart means the request has no single "file" entry of file type.
var ErrNoFilePart = errors.New("fileserver: no file part")

// BlockedExt lists extensions refused with UploadErrExtension (executables and scripts).
var BlockedExt = map[string]bool{
	".exe": true, ".sh": true, ".js": true, ".bat": true, ".cmd": true,
	".php": true, ".py": true, ".rb": true,
}

// UploadedFile is one file received in a request. It lives for that request only.
type UploadedFile struct {
	Name   string
	Size   int64
	Error  UploadError
	header *multipart.FileHeader
}

// Open returns the received bytes. Only valid when Error is UploadErrOK.
func (f *UploadedFile) Open() (io.ReadCloser, error) {
	if f.header == nil {
		return nil, ErrNoFilePart
	}
	return f.header.Open()
}

// FromRequest parses a multipart request and extracts the file posted as field.
// Transport problems are reported in UploadedFile.Error; a missing or non-file entry returns ErrNoFilePart.
// The caller bounds the body with http.MaxBytesReader.
func FromRequest(r *http.Request, field string, maxFileSize int64) (*UploadedFile, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return classifyParseError(err)
	}
	form := r.MultipartForm
	headers := form.File[field]
	if len(headers) == 0 {
		// An empty file input is sent without a filename and ends up as a plain value.
		if vals, ok := form.Value[field]; ok && len(vals) == 1 && vals[0] == "" {
			return &UploadedFile{Error: UploadErrNoFile}, nil
		}
		return nil, ErrNoFilePart
	}
	if len(headers) > 1 || len(form.Value[field]) > 0 {
		return nil, ErrNoFilePart
	}

	h := headers[0]
	f := &UploadedFile{
		Name:   h.Filename,
		Size:   h.Size,
		header: h,
	}
	switch {
	case h.Filename == "" && h.Size == 0:
		f.Error = UploadErrNoFile
	case maxFileSize > 0 && h.Size > maxFileSize:
		f.Error = UploadErrFormSize
	case BlockedExt[strings.ToLower(filepath.Ext(h.Filename))]:
		f.Error = UploadErrExtension
	}
	return f, nil
}

func classifyParseError(err error) (*UploadedFile, error) {
	var maxErr *http.MaxBytesError
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return nil, ErrNoFilePart
	case errors.As(err, &maxErr):
		return &UploadedFile{Error: UploadErrIniSize}, nil
	case errors.As(err, &pathErr):
		return &UploadedFile{Error: UploadErrNoTmpDir}, nil
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &UploadedFile{Error: UploadErrPartial}, nil
	}
	return &UploadedFile{Error: UploadErrPartial}, nil
}
