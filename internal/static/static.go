package static

import (
	"fmt"
	"io/fs"
	"net/http"
)

// Asset content types.
const (
	ContentTypeCSS = "text/css"
	ContentTypeSVG = "image/svg+xml"
)

// Entry pairs an asset name with its bytes and content type.
type Entry struct {
	Name        string
	ContentType string
	Body        []byte
}

// Response is the outcome of dispatching an asset path.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Dispatcher maps asset names to their entries. Entries are fixed at
// construction and never re-read.
type Dispatcher struct {
	entries map[string]Entry
}

// NewDispatcher creates a dispatcher over the given entries.
func NewDispatcher(entries ...Entry) *Dispatcher {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return &Dispatcher{entries: m}
}

// Assets loads the embedded theme.css and favicon.svg into a dispatcher.
func Assets() (*Dispatcher, error) {
	fsys, err := fs.Sub(Files, "assets")
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for name, contentType := range map[string]string{
		"theme.css":   ContentTypeCSS,
		"favicon.svg": ContentTypeSVG,
	} {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read asset %s: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, ContentType: contentType, Body: body})
	}

	return NewDispatcher(entries...), nil
}

// Serve resolves an asset path. Names match exactly and case-sensitively;
// anything else is a 404 with an empty body.
func (d *Dispatcher) Serve(path string) Response {
	e, ok := d.entries[path]
	if !ok {
		return Response{Status: http.StatusNotFound, Header: http.Header{}}
	}

	h := http.Header{}
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}

	return Response{Status: http.StatusOK, Header: h, Body: e.Body}
}
