// Package curie handles compact identifiers of the form PREFIX:LOCAL_ID and
// the prefix spellings that differ between our own store and external KPs.
package curie

import (
	"fmt"
	"strings"
	"unicode"
)

// Prefix returns the text before the first colon, or the whole curie when
// there is no colon.
func Prefix(c string) string {
	if i := strings.IndexByte(c, ':'); i >= 0 {
		return c[:i]
	}
	return c
}

// LocalID returns the last colon-delimited segment, so "PR:PR:000001"
// yields "000001".
func LocalID(c string) string {
	if i := strings.LastIndexByte(c, ':'); i >= 0 {
		return c[i+1:]
	}
	return c
}

// HasPrefix reports whether c uses the given prefix.
func HasPrefix(c, prefix string) bool {
	return strings.HasPrefix(c, prefix+":")
}

// DefaultRenames maps internal prefixes to the spelling KPs use.
var DefaultRenames = map[string]string{
	"CUI":       "UMLS",
	"REACT":     "Reactome",
	"UniProtKB": "UNIPROTKB",
}

// Converter renames curie prefixes between the internal convention and a
// KP's convention. ToInternal(ToExternal(c)) == c for every prefix in its table.
type Converter struct {
	toExternal map[string]string
	toInternal map[string]string
}

// NewConverter builds a converter from DefaultRenames plus extra. An entry in
// extra replaces the default for the same internal prefix. Two internal
// prefixes that rename to the same external one are rejected.
func NewConverter(extra map[string]string) (*Converter, error) {
	merged := make(map[string]string, len(DefaultRenames)+len(extra))
	for internal, external := range DefaultRenames {
		merged[internal] = external
	}
	for internal, external := range extra {
		merged[internal] = external
	}

	c := &Converter{
		toExternal: make(map[string]string, len(merged)),
		toInternal: make(map[string]string, len(merged)),
	}
	for internal, external := range merged {
		if internal == "" || external == "" {
			return nil, fmt.Errorf("curie: empty prefix in rename %q -> %q", internal, external)
		}
		if other, ok := c.toInternal[external]; ok {
			return nil, fmt.Errorf("curie: prefixes %q and %q both rename to %q", other, internal, external)
		}
		c.toExternal[internal] = external
		c.toInternal[external] = internal
	}
	return c, nil
}

// Default returns a converter with only DefaultRenames.
func Default() *Converter {
	c, _ := NewConverter(nil)
	return c
}

func (c *Converter) ToExternal(curie string) string {
	return rename(curie, c.toExternal)
}

func (c *Converter) ToInternal(curie string) string {
	return rename(curie, c.toInternal)
}

// rename swaps only the prefix so that embedded colons in the local part
// are preserved.
func rename(curie string, table map[string]string) string {
	i := strings.IndexByte(curie, ':')
	if i < 0 {
		return curie
	}
	if to, ok := table[curie[:i]]; ok {
		return to + curie[i:]
	}
	return curie
}

// PascalCase converts "chemical_substance" or "chemicalSubstance" to
// "ChemicalSubstance".
func PascalCase(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "_") {
		var b strings.Builder
		for _, word := range strings.Split(s, "_") {
			if word == "" {
				continue
			}
			b.WriteString(strings.ToUpper(word[:1]))
			b.WriteString(strings.ToLower(word[1:]))
		}
		return b.String()
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SnakeCase converts "ChemicalSubstance" or "chemicalSubstance" to
// "chemical_substance".
func SnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
