package infra

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// Supported content encodings.
const (
	EncodingBrotli  = "br"
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
)

// MinCompressSize is the smallest body worth compressing.
const MinCompressSize = 1024

var compressibleTypes = []string{
	"text/html",
	"text/css",
	"text/javascript",
	"text/plain",
	"application/javascript",
	"application/json",
	"image/svg+xml",
}

// ShouldCompress reports whether a body of the given content type benefits from compression.
func ShouldCompress(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, compressible := range compressibleTypes {
		if ct == compressible {
			return true
		}
	}
	return false
}

// NegotiateEncoding picks the preferred encoding from an Accept-Encoding header.
// Brotli wins over gzip; an empty string means identity.
func NegotiateEncoding(acceptEncoding string) string {
	var gzipOK, brOK bool
	for _, part := range strings.Split(strings.ToLower(acceptEncoding), ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if rejected(params) {
			continue
		}
		switch strings.TrimSpace(name) {
		case EncodingBrotli:
			brOK = true
		case EncodingGzip:
			gzipOK = true
		}
	}

	switch {
	case brOK:
		return EncodingBrotli
	case gzipOK:
		return EncodingGzip
	default:
		return ""
	}
}

// rejected reports whether the parameters carry q=0.
func rejected(params string) bool {
	for _, p := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(key) != "q" {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil && q == 0
	}
	return false
}

// Compress encodes data with the given content-encoding.
// Unknown encodings return the data as-is.
func Compress(data []byte, encoding string) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch encoding {
	case EncodingBrotli:
		w = brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	case EncodingGzip:
		w = gzip.NewWriter(&buf)
	case EncodingDeflate:
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		w = fw
	default:
		return data, nil
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
