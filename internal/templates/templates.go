// Package templates renders the site's HTML pages from embedded templates.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
)

// LayoutName is the template every page is rendered through.
const LayoutName = "base.html"

//go:embed html/*.html
var embedded embed.FS

// ErrUnknownPage is returned when a page has no parsed template.
var ErrUnknownPage = errors.New("unknown page")

// Page is a named template that renders without request data.
type Page interface {
	TemplateName() string
}

// Home is the landing page.
type Home struct{}

// TemplateName implements Page.
func (Home) TemplateName() string { return "home.html" }

// AboutUs is the about-us page.
type AboutUs struct{}

// TemplateName implements Page.
func (AboutUs) TemplateName() string { return "about-us.html" }

// RenderError reports a page that failed to render.
type RenderError struct {
	Page string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer holds one parsed template set per page, each layered over the layout.
// It is safe for concurrent use.
type Renderer struct {
	pages map[string]*template.Template
}

// Default returns a renderer over the embedded templates.
func Default() (*Renderer, error) {
	fsys, err := fs.Sub(embedded, "html")
	if err != nil {
		return nil, err
	}
	return NewRenderer(fsys)
}

// NewRenderer parses the layout and every page template found at the root of fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	layout, err := template.ParseFS(fsys, LayoutName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == LayoutName {
			continue
		}

		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(fsys, name); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		pages[path.Base(name)] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render executes the page through the layout.
// Output is deterministic for a given page.
func (r *Renderer) Render(p Page) (string, error) {
	name := p.TemplateName()

	t, ok := r.pages[name]
	if !ok {
		return "", &RenderError{Page: name, Err: ErrUnknownPage}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, LayoutName, p); err != nil {
		return "", &RenderError{Page: name, Err: err}
	}

	return buf.String(), nil
}
