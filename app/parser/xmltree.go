package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// parseDocument reads an already decoded document. Attributes and namespaces
// are kept on the elements, so dialect paths may use etree predicates.
func parseDocument(text string) (*etree.Document, error) {
	doc := etree.NewDocument()
	// text is UTF-8 already, whatever the prolog says
	doc.ReadSettings.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) {
		return r, nil
	}

	if err := doc.ReadFromString(text); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return doc, nil
}

// content returns the character data of the whole subtree of el in document
// order, trimmed. Inline markup such as <b> inside a paragraph is flattened.
func content(el *etree.Element) string {
	var b strings.Builder
	writeText(&b, el)
	return strings.TrimSpace(b.String())
}

func writeText(b *strings.Builder, el *etree.Element) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			writeText(b, t)
		}
	}
}
