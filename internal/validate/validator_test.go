package validate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

func pdfBuffer(size int) []byte {
	buf := bytes.Repeat([]byte{'x'}, size)
	copy(buf, "%PDF-1.7\n")
	return buf
}

func TestValidator_PDFBoundaries(t *testing.T) {
	v := New(DefaultConfig())

	tests := []struct {
		name   string
		data   []byte
		ok     bool
		reason Reason
	}{
		{name: "empty", data: nil, reason: ReasonEmpty},
		{name: "1023 bytes with signature", data: pdfBuffer(1023), reason: ReasonTooSmall},
		{name: "1024 bytes with signature", data: pdfBuffer(1024), ok: true},
		{
			name:   "2000 bytes of html",
			data:   append([]byte("<html>"), bytes.Repeat([]byte{'a'}, 1994)...),
			reason: ReasonHTML,
		},
		{name: "101 MiB with signature", data: pdfBuffer(101 * 1024 * 1024), reason: ReasonTooLarge},
		{name: "no signature", data: bytes.Repeat([]byte{'x'}, 4096), reason: ReasonBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.data, domain.ContentKindPDF)
			assert.Equal(t, tt.ok, res.OK)
			if tt.ok {
				assert.Equal(t, domain.ContentKindPDF, res.Kind)
				assert.Equal(t, "ok", res.String())
				return
			}
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestValidator_HTMLIsClassified(t *testing.T) {
	v := New(Config{})
	page := append([]byte("\n  <!DOCTYPE html><html><body>Access denied</body></html>"), bytes.Repeat([]byte{' '}, 3000)...)

	res := v.Validate(page, domain.ContentKindPDF)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonHTML, res.Reason)
	assert.Equal(t, domain.ContentKindHTMLRejected, res.Kind)
}

func TestValidator_CustomBounds(t *testing.T) {
	v := New(Config{MinPDFBytes: 10, MaxPDFBytes: 20})

	assert.True(t, v.Validate(pdfBuffer(10), domain.ContentKindPDF).OK)
	assert.True(t, v.Validate(pdfBuffer(20), domain.ContentKindPDF).OK)
	assert.Equal(t, ReasonTooLarge, v.Validate(pdfBuffer(21), domain.ContentKindPDF).Reason)
}

func TestValidator_XML(t *testing.T) {
	v := New(DefaultConfig())
	body := bytes.Repeat([]byte("<p>text</p>"), 100)

	t.Run("accepts declaration", func(t *testing.T) {
		data := append([]byte(`<?xml version="1.0"?><article>`), body...)
		res := v.Validate(data, domain.ContentKindXML)
		assert.True(t, res.OK)
		assert.Equal(t, domain.ContentKindXML, res.Kind)
	})

	t.Run("accepts bare article root", func(t *testing.T) {
		data := append([]byte(`<article xmlns:xlink="http://www.w3.org/1999/xlink">`), body...)
		assert.True(t, v.Validate(data, domain.ContentKindXML).OK)
	})

	t.Run("rejects html", func(t *testing.T) {
		data := append([]byte(`<html>`), body...)
		assert.Equal(t, ReasonHTML, v.Validate(data, domain.ContentKindXML).Reason)
	})

	t.Run("rejects short xml", func(t *testing.T) {
		assert.Equal(t, ReasonTooSmall, v.Validate([]byte(`<?xml version="1.0"?><a/>`), domain.ContentKindXML).Reason)
	})
}

func TestValidator_DeepInspectRejectsUnparseable(t *testing.T) {
	v := New(Config{DeepInspect: true})

	res := v.Validate(pdfBuffer(4096), domain.ContentKindPDF)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonUnreadable, res.Reason)
}

func TestIsPDFLike(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.org/paper.pdf", true},
		{"https://example.org/PAPER.PDF", true},
		{"https://example.org/paper.pdf?download=1", true},
		{"https://example.org/paper.pdf#page=2", true},
		{"https://example.org/paper.pdfx", false},
		{"https://example.org/article/123", false},
		{"https://example.org/pdf/123", false},
		{"paper.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDFLike(tt.url))
		})
	}
}
