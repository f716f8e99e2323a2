package core

// decode.go turns uploaded bytes into text before CSV parsing.
//
// The encoding is chosen by the user (default UTF-8) and resolved through the
// WHATWG encoding index, so labels such as "latin1", "iso-8859-1" and
// "windows-1252" all work. For UTF-8 input a leading BOM is removed and
// invalid byte sequences are replaced with U+FFFD instead of failing the import.

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when no encoding is requested.
const DefaultEncoding = "utf-8"

// LookupEncoding resolves an encoding label. An empty label means UTF-8.
func LookupEncoding(label string) (encoding.Encoding, string, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		label = DefaultEncoding
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", &ParseError{
			Reason:  ReasonUnreadable,
			Message: fmt.Sprintf("unsupported encoding %q", label),
			Err:     err,
		}
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return enc, name, nil
}

// DecodeText reads r fully and decodes it with the named encoding.
func DecodeText(r io.Reader, label string) (string, error) {
	enc, name, err := LookupEncoding(label)
	if err != nil {
		return "", err
	}

	var decoder transform.Transformer
	if name == DefaultEncoding {
		// BOMOverride strips a UTF-8 BOM (and honours UTF-16 BOMs); the UTF-8
		// decoder replaces invalid sequences.
		decoder = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	} else {
		decoder = enc.NewDecoder()
	}

	data, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return "", &ParseError{
			Reason:  ReasonUnreadable,
			Message: fmt.Sprintf("decode %s: %v", name, err),
			Err:     err,
		}
	}
	return strings.TrimPrefix(string(data), utf8BOM), nil
}
