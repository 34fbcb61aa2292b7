// Package charset turns agency payloads of unknown encoding into UTF-8 text.
package charset

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*?encoding\s*=\s*["']([A-Za-z0-9._:\-]+)["']`)
)

// detector names that the encoding indexes spell differently
var aliases = map[string]string{
	"gb-18030": "gb18030",
}

// Decode returns raw as UTF-8 and the charset it was read as. The override
// charset wins, then the declared one, then valid UTF-8 is kept as is, and
// only then is the charset detected statistically. A declaration that does
// not match the bytes is ignored. Bytes the chosen charset cannot map are an
// error, never replacement characters.
func Decode(raw []byte, override, declared string) (string, string, error) {
	if override != "" {
		return decodeWith(raw, override)
	}
	if declared != "" && !isUTF8(declared) {
		if text, name, err := decodeWith(raw, declared); err == nil {
			return text, name, nil
		}
	}
	if utf8.Valid(raw) {
		return string(bytes.TrimPrefix(raw, utf8BOM)), "UTF-8", nil
	}

	name, err := Detect(raw)
	if err != nil {
		return "", "", err
	}
	return decodeWith(raw, name)
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// Detect guesses the charset of raw.
func Detect(raw []byte) (string, error) {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}
	if result == nil || result.Charset == "" {
		return "", fmt.Errorf("failed to detect charset")
	}
	return result.Charset, nil
}

// DeclaredXMLEncoding returns the encoding named in an XML declaration, or ""
// when there is none.
func DeclaredXMLEncoding(raw []byte) string {
	head := bytes.TrimPrefix(raw, utf8BOM)
	if len(head) > 256 {
		head = head[:256]
	}
	m := xmlDeclRe.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[1])
}

func lookup(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if enc, err := htmlindex.Get(key); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}

func decodeWith(raw []byte, name string) (string, string, error) {
	enc, err := lookup(name)
	if err != nil {
		return "", "", err
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode as %s: %w", name, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", "", fmt.Errorf("failed to decode as %s: unmapped bytes", name)
	}
	return string(out), name, nil
}
