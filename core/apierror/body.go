package apierror

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const maxBodyLength = 2000

// RenderBody returns the error body as readable text. Gateways and proxies
// often answer with an HTML page; those are converted to Markdown.
func RenderBody(contentType string, body []byte) string {
	if !looksLikeHTML(contentType, body) {
		return truncate(string(body))
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		slog.Debug("failed to convert HTML error body", "error", err.Error())
		return truncate(string(body))
	}
	return truncate(strings.TrimSpace(markdown))
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func truncate(text string) string {
	if len(text) <= maxBodyLength {
		return text
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", text[:maxBodyLength], len(text))
}
