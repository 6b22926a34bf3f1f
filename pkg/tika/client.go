// Package tika provides a client for an Apache Tika server, the text
// extraction boundary: raw document bytes in, plain text out.
package tika

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"wattson/internal/config"
	"wattson/internal/rag"
)

// Client talks to a Tika server.
type Client struct {
	serverURL string
}

// NewClient creates a Tika client from the configuration.
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{serverURL: cfg.ServerURL}
}

// ExtractText sends the document to Tika and returns the extracted plain
// text. The MIME type is inferred from the file name. Failures wrap
// rag.ErrExtractionFailed.
func (c *Client) ExtractText(fileReader io.Reader, fileName string) (string, error) {
	req, err := http.NewRequest(http.MethodPut, c.serverURL+"/tika", fileReader)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", rag.ErrExtractionFailed, err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(fileName))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: call tika: %v", rag.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: tika returned [%d]: %s", rag.ErrExtractionFailed, resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("%w: read tika response: %v", rag.ErrExtractionFailed, err)
	}
	return buf.String(), nil
}

// detectMimeType maps the file extension to a Content-Type.
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
