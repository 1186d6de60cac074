package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service renders documents and optionally archives PDFs.
type Service struct {
	chromePath string
	archive    *Archive
	renderPDF  func(ctx context.Context, chromePath, html string) ([]byte, error)
}

// NewService creates an export service. archive may be nil.
func NewService(chromePath string, archive *Archive) *Service {
	return &Service{chromePath: chromePath, archive: archive, renderPDF: renderPDF}
}

func (s *Service) Export(ctx context.Context, doc Document, format Format) (*Result, error) {
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now().UTC()
	}
	html, err := RenderHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	base := sanitizeFilename(doc.Title)
	switch format {
	case FormatHTML:
		return &Result{Data: []byte(html), Filename: base + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		data, err := s.renderPDF(ctx, s.chromePath, html)
		if err != nil {
			return nil, err
		}
		result := &Result{Data: data, Filename: base + ".pdf", MimeType: "application/pdf"}
		if s.archive != nil {
			name := fmt.Sprintf("assessments/%d/%s-%s", doc.AssessmentID, doc.GeneratedAt.Format("20060102T150405Z"), result.Filename)
			signed, err := s.archive.Store(ctx, name, result)
			if err != nil {
				slog.WarnContext(ctx, "export: archive upload failed", "assessment_id", doc.AssessmentID, "error", err)
			} else {
				result.URL = signed
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
