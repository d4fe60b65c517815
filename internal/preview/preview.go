// Package preview renders the HTML page served under /watch/.
package preview

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/link"
)

// ActionStream renders an inline player; any other action renders only the
// download link.
const ActionStream = "stream"

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Resolver returns verified metadata for a link.
type Resolver interface {
	Resolve(ctx context.Context, lnk domain.Link) (*domain.ObjectMetadata, error)
}

// Renderer renders preview pages.
type Renderer struct {
	baseURL  string
	resolver Resolver
}

// NewRenderer creates a Renderer. Media URLs are rooted at baseURL, or are
// host-relative when it is empty.
func NewRenderer(baseURL string, resolver Resolver) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/"), resolver: resolver}
}

type pageData struct {
	Title    string
	MimeType string
	Size     string
	Kind     string
	Action   string
	MediaURL string
}

// Render returns the preview page for the object. Resolver errors are
// returned unchanged.
func (r *Renderer) Render(ctx context.Context, objectID int64, hash, action string) (string, error) {
	meta, err := r.resolver.Resolve(ctx, domain.Link{ObjectID: objectID, SecretHash: hash})
	if err != nil {
		return "", err
	}

	title := meta.FileName
	if title == "" {
		title = fmt.Sprintf("file_%d", objectID)
	}
	data := pageData{
		Title:    title,
		MimeType: meta.MimeType,
		Size:     formatSize(meta.FileSize),
		Kind:     mediaKind(meta.MimeType),
		Action:   action,
		MediaURL: r.baseURL + "/" + link.Format(objectID, hash),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return buf.String(), nil
}

func mediaKind(mimeType string) string {
	kind, _, _ := strings.Cut(mimeType, "/")
	switch kind {
	case "video", "audio", "image":
		return kind
	}
	return "other"
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
