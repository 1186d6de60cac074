// Package export renders an answered questionnaire, with its clarification
// threads, as HTML or PDF.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Document is everything the template needs, already resolved to text.
type Document struct {
	AssessmentID int64
	Title        string
	Status       string
	Owner        string
	Approver     string
	GeneratedAt  time.Time
	Pages        []Page
}

type Page struct {
	Number int
	Items  []Item
}

type Item struct {
	QuestionID int
	Question   string
	Answer     string
	Threads    []Thread
}

type Thread struct {
	Opener    string
	Text      string
	Status    string
	CreatedAt time.Time
	Replies   []Reply
}

type Reply struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Result contains the export output. URL is set when the file was archived.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	URL      string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
