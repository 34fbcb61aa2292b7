package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/oussamaboulmali/newswire/app/database"
)

// Generator renders stored agency articles as an RSS 2.0 channel.
type Generator struct {
	baseURL string
	version string
}

// NewGenerator takes the public base URL of the server, e.g.
// "http://localhost:8080", and the version advertised in <generator>.
func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(agency database.Agency, articles []database.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	selfLink := fmt.Sprintf("%s/agencies/%s/feed", g.baseURL, agency.Name)

	g.writeElement(&buf, "title", agency.Name, 4)
	g.writeElement(&buf, "link", selfLink, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Articles ingested from %s (%s)", agency.Name, agency.Format), 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().UTC()
	if len(articles) > 0 {
		lastBuildDate = articles[0].CreatedDate
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("newswire/%s", g.version), 4)

	for _, article := range articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, article database.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(article.FileName))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", article.Title, 6)

	// agencies without slugs store a single space
	g.writeElement(buf, "description", strings.TrimSpace(article.Slug), 6)

	if article.FullText != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(article.FullText, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", article.CreatedDate.Format(time.RFC1123Z), 6)

	if article.Label != nil {
		g.writeElement(buf, "category", *article.Label, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
