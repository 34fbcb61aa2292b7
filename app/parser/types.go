package parser

import (
	"fmt"
)

const (
	FormatNITF    = "nitf-xml"
	FormatNewsML  = "newsml-xml"
	FormatCNML    = "cnml-xml"
	FormatAzertac = "azertac-xml"
	FormatMAP     = "map-text"
	FormatMENA    = "mena-text"
)

// Article is the canonical projection of one agency document.
type Article struct {
	Title    string
	Slug     string
	FullText string
	Label    *string // nil when the format yields no label
	FileName string
}

type Options struct {
	Encoding string // forced charset, detection is skipped when set
}

// Parser decodes one agency format. Parse never panics on malformed input;
// it returns a *ParseError instead.
type Parser interface {
	Format() string
	Extensions() []string
	Parse(raw []byte, fileName string) (*Article, error)
}

type ParseError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.FileName, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseFailure(fileName, reason string, err error) *ParseError {
	return &ParseError{FileName: fileName, Reason: reason, Err: err}
}

func strPtr(s string) *string {
	return &s
}
