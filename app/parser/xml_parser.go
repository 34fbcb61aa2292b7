package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/oussamaboulmali/newswire/app/charset"
)

// dialect is the field-path table of one XML news format. Paths are etree
// paths relative to the document, starting with the root element.
type dialect struct {
	format     string
	title      string
	body       string
	slug       string // empty: the format has no slug, a single space is stored
	slugSep    string
	labelPath  string
	fileLabel  func(fileName string) *string
	extensions []string
}

var (
	ansaLabelRe    = regexp.MustCompile(`_A\d{3}(\d+)\.xml$`)
	azertacLabelRe = regexp.MustCompile(`_(\d+)\.xml$`)
	cnmlLabelRe    = regexp.MustCompile(`^.*?([a-z]{3})([A-Z])(\d{6})_`)
)

var xmlExtensions = []string{".xml", ".txt"}

var dialects = []dialect{
	{
		format: FormatNITF,
		title:  "nitf/head/title",
		body:   "nitf/body/body.content/block/p",
		fileLabel: func(fileName string) *string {
			if m := ansaLabelRe.FindStringSubmatch(fileName); m != nil {
				return strPtr(m[1])
			}
			return nil
		},
		extensions: xmlExtensions,
	},
	{
		format:     FormatNewsML,
		title:      "NewsML/NewsItem/NewsComponent/NewsLines/HeadLine",
		slug:       "NewsML/NewsItem/NewsComponent/NewsLines/SlugLine",
		body:       "NewsML/NewsItem/NewsComponent/ContentItem/DataContent",
		labelPath:  "NewsML/NewsItem/Identification/Label/LabelText",
		extensions: xmlExtensions,
	},
	{
		format:     FormatCNML,
		title:      "CNML/Items/Item/MetaInfo/DescriptionMetaGroup/Titles/HeadLine",
		slug:       "CNML/Items/Item/MetaInfo/DescriptionMetaGroup/Keywords/Keyword",
		slugSep:    ", ",
		body:       "CNML/Items/Item/Contents/ContentItem/DataContent",
		fileLabel:  cnmlLabel,
		extensions: xmlExtensions,
	},
	{
		format: FormatAzertac,
		title:  "news/title",
		body:   "news/body",
		fileLabel: func(fileName string) *string {
			if m := azertacLabelRe.FindStringSubmatch(fileName); m != nil {
				return strPtr(m[1])
			}
			return strPtr("0")
		},
		extensions: xmlExtensions,
	},
}

// cnmlLabel builds "xin1234" from names like "2024xinF000123_..." : three
// letters and the first four digits of the number without leading zeros.
func cnmlLabel(fileName string) *string {
	m := cnmlLabelRe.FindStringSubmatch(fileName)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}
	digits := strconv.Itoa(n)
	if len(digits) > 4 {
		digits = digits[:4]
	}
	return strPtr(m[1] + digits)
}

type XMLParser struct {
	dialect  dialect
	encoding string
}

func (p *XMLParser) Format() string {
	return p.dialect.format
}

func (p *XMLParser) Extensions() []string {
	return p.dialect.extensions
}

func (p *XMLParser) Parse(raw []byte, fileName string) (*Article, error) {
	text, _, err := charset.Decode(raw, p.encoding, charset.DeclaredXMLEncoding(raw))
	if err != nil {
		return nil, parseFailure(fileName, "undecodable bytes", err)
	}

	doc, err := parseDocument(text)
	if err != nil {
		return nil, parseFailure(fileName, "malformed xml", err)
	}

	d := p.dialect

	title, ok := joined(doc, d.title, " ")
	if !ok {
		return nil, parseFailure(fileName, "missing element "+d.title, nil)
	}

	// a present but empty body element is stored as ""
	body, ok := joined(doc, d.body, "\n")
	if !ok {
		return nil, parseFailure(fileName, "missing element "+d.body, nil)
	}

	slug := " "
	if d.slug != "" {
		sep := d.slugSep
		if sep == "" {
			sep = " "
		}
		if slug, ok = joined(doc, d.slug, sep); !ok {
			return nil, parseFailure(fileName, "missing element "+d.slug, nil)
		}
	}

	var label *string
	switch {
	case d.labelPath != "":
		value, ok := joined(doc, d.labelPath, " ")
		if !ok {
			return nil, parseFailure(fileName, "missing element "+d.labelPath, nil)
		}
		label = strPtr(value)
	case d.fileLabel != nil:
		label = d.fileLabel(fileName)
	}

	return &Article{
		Title:    title,
		Slug:     slug,
		FullText: body,
		Label:    label,
		FileName: fileName,
	}, nil
}

// joined returns the trimmed content of every element at path joined by sep,
// and false when the path does not exist.
func joined(doc *etree.Document, path, sep string) (string, bool) {
	elements := doc.FindElements(path)
	if len(elements) == 0 {
		return "", false
	}
	values := make([]string, 0, len(elements))
	for _, el := range elements {
		if v := content(el); v != "" {
			values = append(values, v)
		}
	}
	return strings.Join(values, sep), true
}
