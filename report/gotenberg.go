package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PageOptions control the Chromium page setup. Sizes are in inches; zero
// values fall back to Gotenberg defaults.
type PageOptions struct {
	PaperWidth   float64
	PaperHeight  float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
}

// ReceiptPage is A5 portrait with narrow margins.
var ReceiptPage = PageOptions{
	PaperWidth:   5.83,
	PaperHeight:  8.27,
	MarginTop:    0.4,
	MarginBottom: 0.4,
	MarginLeft:   0.4,
	MarginRight:  0.4,
}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	page       PageOptions
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		page:    ReceiptPage,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithPage returns a copy of the client that renders with page.
func (c *Client) WithPage(page PageOptions) *Client {
	cp := *c
	cp.page = page
	return &cp
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts raw HTML into a PDF document using Gotenberg.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, strings.NewReader(html)); err != nil {
		return nil, err
	}
	for name, value := range c.page.fields() {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.WriteField("printBackground", "true"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/forms/chromium/convert/html", c.baseURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return nil, fmt.Errorf("render failed with status %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("render failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p PageOptions) fields() map[string]string {
	out := map[string]string{}
	set := func(name string, v float64) {
		if v > 0 {
			out[name] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	set("paperWidth", p.PaperWidth)
	set("paperHeight", p.PaperHeight)
	set("marginTop", p.MarginTop)
	set("marginBottom", p.MarginBottom)
	set("marginLeft", p.MarginLeft)
	set("marginRight", p.MarginRight)
	return out
}
