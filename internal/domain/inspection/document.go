package inspection

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf16"
)

// Document is the snapshot of an editor document taken for one inspection.
type Document struct {
	URI       string
	Version   int
	Text      string
	LineCount int
}

// NewDocument builds a Document and counts its lines.
func NewDocument(uri string, version int, text string) Document {
	return Document{
		URI:       uri,
		Version:   version,
		Text:      text,
		LineCount: CountLines(text),
	}
}

// CountLines counts lines the way editors do: an empty text is one line and
// a trailing newline starts a new (empty) line.
func CountLines(text string) int {
	return strings.Count(text, "\n") + 1
}

// CountChars measures text in UTF-16 code units, the unit editors and the
// remote service use for string length. Characters outside the Basic
// Multilingual Plane count twice.
func CountChars(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// Suffix returns the file extension of the document path including the dot,
// or "" when there is none.
func (d Document) Suffix() string {
	return path.Ext(d.Path())
}

// Path returns the decoded path component of the document URI. URIs that
// do not parse are returned unchanged.
func (d Document) Path() string {
	return URIPath(d.URI)
}

// URIPath extracts the path of a document URI.
func URIPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return uri
	}
	return u.Path
}
