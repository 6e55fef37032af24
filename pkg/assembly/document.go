package assembly

import (
	"strings"
)

// segment is a run of document text. Template segments are still searched
// for tokens; fragment segments are inserted content and are never searched.
type segment struct {
	text     string
	fragment bool
}

// Document is an immutable text value built from template and fragment
// segments. The zero value is an empty document.
type Document struct {
	segs []segment
}

// NewDocument returns a document whose whole text is template text.
func NewDocument(text string) Document {
	if text == "" {
		return Document{}
	}
	return Document{segs: []segment{{text: text}}}
}

// Replace returns a new document where every occurrence of token inside
// template text is replaced by fragment, along with the number of
// occurrences. Text inserted by this or an earlier call is left alone, and
// the template text on both sides of a replaced token is never rejoined.
// d itself is not modified.
func (d Document) Replace(token, fragment string) (Document, int) {
	if token == "" {
		return d, 0
	}

	count := 0
	for _, s := range d.segs {
		if !s.fragment {
			count += strings.Count(s.text, token)
		}
	}
	if count == 0 {
		return d, 0
	}

	out := make([]segment, 0, len(d.segs)+2*count)
	for _, s := range d.segs {
		if s.fragment {
			out = append(out, s)
			continue
		}
		rest := s.text
		for {
			i := strings.Index(rest, token)
			if i < 0 {
				break
			}
			if i > 0 {
				out = append(out, segment{text: rest[:i]})
			}
			out = append(out, segment{text: fragment, fragment: true})
			rest = rest[i+len(token):]
		}
		if rest != "" {
			out = append(out, segment{text: rest})
		}
	}
	return Document{segs: out}, count
}

// Len returns the length of the rendered text in bytes.
func (d Document) Len() int {
	n := 0
	for _, s := range d.segs {
		n += len(s.text)
	}
	return n
}

// String renders the document.
func (d Document) String() string {
	var sb strings.Builder
	sb.Grow(d.Len())
	for _, s := range d.segs {
		sb.WriteString(s.text)
	}
	return sb.String()
}

// Bytes renders the document as a byte slice.
func (d Document) Bytes() []byte {
	return []byte(d.String())
}
