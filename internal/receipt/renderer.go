package receipt

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"time"
)

//go:embed templates/receipt.html
var templates embed.FS

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Renderer turns a Receipt into HTML and, with a PDF client, into PDF.
type Renderer struct {
	tpl    *template.Template
	client PDFClient
}

// NewRenderer parses the receipt template. client may be nil when only HTML
// output is needed.
func NewRenderer(client PDFClient) (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
	}
	tpl, err := template.New("receipt.html").Funcs(funcMap).ParseFS(templates, "templates/receipt.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tpl: tpl, client: client}, nil
}

// HTML executes the template.
func (r *Renderer) HTML(rc Receipt) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, rc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PDF renders the receipt and converts it through the PDF client.
func (r *Renderer) PDF(ctx context.Context, rc Receipt) ([]byte, error) {
	if r.client == nil {
		return nil, errors.New("receipt: pdf client not configured")
	}
	html, err := r.HTML(rc)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}
