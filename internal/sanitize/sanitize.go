// Package sanitize normalizes dataset column names into identifiers that
// PostgreSQL accepts unquoted: lowercase ASCII letters, digits and
// underscores, not starting with a digit, at most 63 bytes.
//
// Sanitization is pure and idempotent: Name(Name(s)) == Name(s).
package sanitize

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// Sanitizer implements geoload.Sanitizer.
type Sanitizer struct{}

// New creates a Sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Name sanitizes a single column name. position is the 1-based column
// position, used only to name columns that sanitize to nothing.
func Name(name string, position int) string {
	s := transliterate(name)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		// '_', whitespace, punctuation and anything non-ASCII collapse into one delimiter.
		pendingSep = true
	}
	out := b.String()

	if len(out) > geoload.MaxIdentifierLength {
		out = strings.TrimRight(out[:geoload.MaxIdentifierLength], "_")
	}

	if out == "" {
		return fmt.Sprintf("col_%d", position)
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
		if len(out) > geoload.MaxIdentifierLength {
			out = strings.TrimRight(out[:geoload.MaxIdentifierLength], "_")
		}
	}
	return out
}

// transliterate strips diacritics ("Año" -> "Ano") and folds compatibility
// forms ("ﬁ" -> "fi"). Characters without an ASCII decomposition survive and
// are dropped later as delimiters.
func transliterate(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// isValid reports whether name is already a sanitized identifier.
func isValid(name string) bool {
	if name == "" || len(name) > geoload.MaxIdentifierLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Sanitize returns a copy of ds whose column names and record keys are
// sanitized. Fails with ColumnNameCollisionError naming both originals when
// two columns map to the same identifier.
func (s *Sanitizer) Sanitize(ds *geoload.Dataset) (*geoload.Dataset, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}

	renamed := make(map[string]string, len(ds.Columns))
	originalOf := make(map[string]string, len(ds.Columns))
	columns := make([]geoload.Column, len(ds.Columns))

	for i, col := range ds.Columns {
		name := Name(col.Name, i+1)
		if !isValid(name) {
			return nil, fmt.Errorf("column %q sanitized to %q, which is not a plain identifier", col.Name, name)
		}
		if first, exists := originalOf[name]; exists {
			return nil, &geoload.ColumnNameCollisionError{
				Sanitized: name,
				First:     first,
				Second:    col.Name,
			}
		}
		originalOf[name] = col.Name
		renamed[col.Name] = name
		columns[i] = geoload.Column{Name: name, Type: col.Type}
	}

	records := make([]geoload.Record, len(ds.Records))
	for i, rec := range ds.Records {
		values := make(map[string]any, len(rec.Values))
		for k, v := range rec.Values {
			if nk, ok := renamed[k]; ok {
				values[nk] = v
			}
		}
		records[i] = geoload.Record{Values: values, Geometry: rec.Geometry}
	}

	out := *ds
	out.Columns = columns
	out.Records = records
	return &out, nil
}

// Verify Sanitizer implements the Sanitizer interface at compile time
var _ geoload.Sanitizer = (*Sanitizer)(nil)
