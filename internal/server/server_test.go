package server

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/andybalholm/brotli"
	. "github.com/onsi/ginkgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zone.digit.vitrine/internal/config"
	"zone.digit.vitrine/internal/static"
	"zone.digit.vitrine/internal/templates"
)

type failingRenderer struct{}

func (failingRenderer) Render(p templates.Page) (string, error) {
	return "", &templates.RenderError{Page: p.TemplateName(), Err: errors.New("boom")}
}

type panickingRenderer struct{}

func (panickingRenderer) Render(templates.Page) (string, error) {
	panic("template exploded")
}

var _ = Describe("Server", func() {
	Describe("rendering pages", func() {
		Context("home page", func() {
			It("should return the rendered home page", func() {
				router, _ := setupServer(nil, &config.Settings{})

				resp := performRequest(router, "GET", "/", nil)

				assert.Equal(GinkgoT(), 200, resp.Code)
				assert.Equal(GinkgoT(), "text/html; charset=utf-8", resp.Header().Get("Content-Type"))
				assert.Contains(GinkgoT(), resp.Body.String(), "<h1>Welcome to Vitrine</h1>")
			})
		})
		Context("about-us page", func() {
			It("should return the rendered about-us page", func() {
				router, _ := setupServer(nil, &config.Settings{})

				resp := performRequest(router, "GET", "/about-us", nil)

				assert.Equal(GinkgoT(), 200, resp.Code)
				assert.Equal(GinkgoT(), "text/html; charset=utf-8", resp.Header().Get("Content-Type"))
				assert.Contains(GinkgoT(), resp.Body.String(), "<h1>About us</h1>")
			})
		})
		Context("when rendering fails", func() {
			It("should return a 500 and log the error", func() {
				router, logs := setupServer(failingRenderer{}, &config.Settings{})

				resp := performRequest(router, "GET", "/about-us", nil)

				assert.Equal(GinkgoT(), 500, resp.Code)
				assert.Equal(GinkgoT(), "500 Internal Server Error", resp.Body.String())
				assert.Contains(GinkgoT(), logs.String(), "failed to render page")
				assert.Contains(GinkgoT(), logs.String(), "about-us.html")
			})
			It("should keep serving other routes", func() {
				router, _ := setupServer(failingRenderer{}, &config.Settings{})

				performRequest(router, "GET", "/", nil)
				resp := performRequest(router, "GET", "/_assets/theme.css", nil)

				assert.Equal(GinkgoT(), 200, resp.Code)
			})
		})
		Context("when rendering panics", func() {
			It("should recover with a 500", func() {
				router, logs := setupServer(panickingRenderer{}, &config.Settings{})

				resp := performRequest(router, "GET", "/", nil)

				assert.Equal(GinkgoT(), 500, resp.Code)
				assert.Contains(GinkgoT(), logs.String(), "handler panicked")
			})
		})
	})

	Describe("serving assets", func() {
		Context("theme.css", func() {
			It("should return the stylesheet as text/css", func() {
				router, _ := setupServer(nil, &config.Settings{})
				want := readAsset("theme.css")

				resp := performRequest(router, "GET", "/_assets/theme.css", nil)

				assert.Equal(GinkgoT(), 200, resp.Code)
				assert.Equal(GinkgoT(), "text/css", resp.Header().Get("Content-Type"))
				assert.Equal(GinkgoT(), want, resp.Body.Bytes())
			})
		})
		Context("favicon.svg", func() {
			It("should return the icon as image/svg+xml", func() {
				router, _ := setupServer(nil, &config.Settings{})
				want := readAsset("favicon.svg")

				resp := performRequest(router, "GET", "/_assets/favicon.svg", nil)

				assert.Equal(GinkgoT(), 200, resp.Code)
				assert.Equal(GinkgoT(), "image/svg+xml", resp.Header().Get("Content-Type"))
				assert.Equal(GinkgoT(), want, resp.Body.Bytes())
			})
		})
		Context("unknown asset", func() {
			It("should return a 404 with an empty body", func() {
				router, _ := setupServer(nil, &config.Settings{})

				for _, path := range []string{"/_assets/missing.png", "/_assets/", "/_assets/nested/theme.css"} {
					resp := performRequest(router, "GET", path, nil)

					assert.Equal(GinkgoT(), 404, resp.Code, path)
					assert.Empty(GinkgoT(), resp.Body.String(), path)
				}
			})
		})
	})

	Describe("unknown routes", func() {
		It("should return the default 404", func() {
			router, _ := setupServer(nil, &config.Settings{})

			resp := performRequest(router, "GET", "/nonexistent-route", nil)

			assert.Equal(GinkgoT(), 404, resp.Code)
		})
	})

	Describe("compression", func() {
		Context("when disabled", func() {
			It("should return the exact asset bytes", func() {
				router, _ := setupServer(nil, &config.Settings{})

				resp := performRequest(router, "GET", "/_assets/theme.css", nil, "Accept-Encoding", "br, gzip")

				assert.Empty(GinkgoT(), resp.Header().Get("Content-Encoding"))
				assert.Equal(GinkgoT(), readAsset("theme.css"), resp.Body.Bytes())
			})
		})
		Context("when enabled", func() {
			It("should brotli-encode large text bodies", func() {
				router, _ := setupServer(nil, &config.Settings{Compression: true})

				resp := performRequest(router, "GET", "/_assets/theme.css", nil, "Accept-Encoding", "gzip, br")

				assert.Equal(GinkgoT(), 200, resp.Code)
				assert.Equal(GinkgoT(), "br", resp.Header().Get("Content-Encoding"))
				assert.Equal(GinkgoT(), "Accept-Encoding", resp.Header().Get("Vary"))
				plain, err := decodeBody(resp.Body.Bytes(), "br")
				require.NoError(GinkgoT(), err)
				assert.Equal(GinkgoT(), readAsset("theme.css"), plain)
			})
			It("should fall back to gzip", func() {
				router, _ := setupServer(nil, &config.Settings{Compression: true})

				resp := performRequest(router, "GET", "/_assets/theme.css", nil, "Accept-Encoding", "gzip")

				assert.Equal(GinkgoT(), "gzip", resp.Header().Get("Content-Encoding"))
				plain, err := decodeBody(resp.Body.Bytes(), "gzip")
				require.NoError(GinkgoT(), err)
				assert.Equal(GinkgoT(), readAsset("theme.css"), plain)
			})
			It("should leave small bodies alone", func() {
				router, _ := setupServer(nil, &config.Settings{Compression: true})

				resp := performRequest(router, "GET", "/_assets/favicon.svg", nil, "Accept-Encoding", "br")

				assert.Empty(GinkgoT(), resp.Header().Get("Content-Encoding"))
				assert.Equal(GinkgoT(), readAsset("favicon.svg"), resp.Body.Bytes())
			})
			It("should not encode for clients without support", func() {
				router, _ := setupServer(nil, &config.Settings{Compression: true})

				resp := performRequest(router, "GET", "/_assets/theme.css", nil)

				assert.Empty(GinkgoT(), resp.Header().Get("Content-Encoding"))
				assert.Equal(GinkgoT(), "Accept-Encoding", resp.Header().Get("Vary"))
				assert.Equal(GinkgoT(), readAsset("theme.css"), resp.Body.Bytes())
			})
		})
	})
})

func setupServer(pages PageRenderer, settings *config.Settings) (http.Handler, *bytes.Buffer) {
	if pages == nil {
		r, err := templates.Default()
		require.NoError(GinkgoT(), err)
		pages = r
	}
	assets, err := static.Assets()
	require.NoError(GinkgoT(), err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	return New(settings, logger, pages, assets).Handler(), &logs
}

func readAsset(name string) []byte {
	b, err := os.ReadFile("../static/assets/" + name)
	require.NoError(GinkgoT(), err)
	return b
}

func performRequest(r http.Handler, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(body []byte, encoding string) ([]byte, error) {
	if encoding == "gzip" {
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	}
	return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
}
