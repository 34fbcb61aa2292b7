package parser

import (
	"regexp"
	"strings"

	"github.com/oussamaboulmali/newswire/app/charset"
)

// minTextLines is the shortest wire dispatch that carries every header line.
const minTextLines = 5

var (
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x9F]`)
	mapLabelRe     = regexp.MustCompile(`MAP(\d+)`)
	menaLabelRe    = regexp.MustCompile(`^\d+`)
	textExtensions = []string{".xml", ".txt"}
	mapExtensions  = []string{".xml", ".txt", ".DAT"}
)

// MAPParser reads MAP dispatches: the label on line 2, the slug on line 4 and
// the title on line 5.
type MAPParser struct {
	encoding string
}

func (p *MAPParser) Format() string {
	return FormatMAP
}

func (p *MAPParser) Extensions() []string {
	return mapExtensions
}

func (p *MAPParser) Parse(raw []byte, fileName string) (*Article, error) {
	text, lines, err := decodeLines(raw, p.encoding, fileName)
	if err != nil {
		return nil, err
	}

	label := strPtr("0")
	if m := mapLabelRe.FindStringSubmatch(strings.TrimSpace(lines[1])); m != nil {
		label = strPtr(m[1])
	}

	return &Article{
		Title:    scrub(lines[4]),
		Slug:     scrub(lines[3]),
		FullText: scrub(text),
		Label:    label,
		FileName: fileName,
	}, nil
}

// MENAParser reads MENA dispatches. The title starts on line 5 and runs up to
// the first blank line.
type MENAParser struct {
	encoding string
}

func (p *MENAParser) Format() string {
	return FormatMENA
}

func (p *MENAParser) Extensions() []string {
	return textExtensions
}

func (p *MENAParser) Parse(raw []byte, fileName string) (*Article, error) {
	text, lines, err := decodeLines(raw, p.encoding, fileName)
	if err != nil {
		return nil, err
	}

	var label *string
	if m := menaLabelRe.FindString(strings.TrimSpace(lines[2])); m != "" {
		label = strPtr(m)
	}

	var title []string
	for _, line := range lines[4:] {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		title = append(title, line)
	}

	return &Article{
		Title:    scrub(strings.Join(title, " ")),
		Slug:     scrub(lines[3]),
		FullText: scrub(text),
		Label:    label,
		FileName: fileName,
	}, nil
}

// decodeLines returns the trimmed document and its lines, failing when the
// file is too short to hold the header lines.
func decodeLines(raw []byte, encoding, fileName string) (string, []string, error) {
	text, _, err := charset.Decode(raw, encoding, "")
	if err != nil {
		return "", nil, parseFailure(fileName, "undecodable bytes", err)
	}

	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	lines := splitLines(text)
	if len(lines) < minTextLines {
		return "", nil, parseFailure(fileName, "too few lines", nil)
	}
	return strings.TrimSpace(text), lines, nil
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// scrub trims s and removes control characters other than tab, newline and
// carriage return.
func scrub(s string) string {
	return controlCharsRe.ReplaceAllString(strings.TrimSpace(s), "")
}
