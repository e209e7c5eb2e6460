// Package view renders the server-side HTML pages from templates embedded in the binary.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var files embed.FS

const (
	PageLogin  = "login"
	PageVerify = "verify"
	PageUpload = "upload"
	PageError  = "error"
)

// Data is passed to every page. Fields a page does not show are ignored.
type Data struct {
	Username string
	Error    string
	Status   string
}

// Renderer writes a named page.
type Renderer interface {
	Render(w io.Writer, page string, data Data) error
}

// Templates holds one parsed set per page, each combined with the layout.
type Templates struct {
	pages map[string]*template.Template
}

var _ Renderer = (*Templates)(nil)

// New parses the embedded templates. It fails only if a template is malformed.
func New() (*Templates, error) {
	t := &Templates{pages: make(map[string]*template.Template)}
	for _, page := range []string{PageLogin, PageVerify, PageUpload, PageError} {
		tpl, err := template.New(page).ParseFS(files, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", page, err)
		}
		t.pages[page] = tpl
	}
	return t, nil
}

// Render executes into a buffer first so a failing template never leaves a half-written page.
func (t *Templates) Render(w io.Writer, page string, data Data) error {
	tpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("view: unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
