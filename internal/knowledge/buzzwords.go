package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed data/buzzwords.json
var bundledBuzzwords []byte

// Buzzwords is the read-only domain vocabulary. Terms are matched as whole
// tokens; compounds such as "react-native" or "ci/cd" are single terms.
type Buzzwords struct {
	terms    map[string]string // key -> category
	compound map[string]bool
}

// BundledBuzzwords returns the vocabulary compiled into the binary.
func BundledBuzzwords() *Buzzwords {
	b, err := parseBuzzwords(bundledBuzzwords)
	if err != nil {
		panic(fmt.Sprintf("knowledge: bundled buzzwords: %v", err))
	}
	return b
}

// LoadBuzzwords reads a vocabulary document mapping category to terms.
func LoadBuzzwords(path string) (*Buzzwords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	b, err := parseBuzzwords(data)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	return b, nil
}

func parseBuzzwords(data []byte) (*Buzzwords, error) {
	var doc map[string][]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	b := &Buzzwords{terms: map[string]string{}, compound: map[string]bool{}}
	categories := make([]string, 0, len(doc))
	for c := range doc {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		for _, term := range doc[c] {
			k := Key(term)
			if k == "" {
				continue
			}
			if _, dup := b.terms[k]; !dup {
				b.terms[k] = c
			}
			if strings.ContainsAny(k, compoundJoiners) {
				b.compound[k] = true
			}
		}
	}
	return b, nil
}

const (
	compoundJoiners = "-./+#"
	sentencePunct   = ".,!?;:…\"'»)]}"
	openingPunct    = "\"'«([{"
)

// Contains reports whether token is a vocabulary term. Surrounding sentence
// punctuation is ignored, and a hyphenated token whose parts are all terms
// counts as a term.
func (b *Buzzwords) Contains(token string) bool {
	_, ok := b.Lookup(token)
	return ok
}

// Lookup returns the category of token.
func (b *Buzzwords) Lookup(token string) (string, bool) {
	if b == nil {
		return "", false
	}
	k := Key(token)
	if c, ok := b.terms[k]; ok {
		return c, true
	}
	trimmed := strings.TrimLeft(strings.TrimRight(k, sentencePunct), openingPunct)
	if c, ok := b.terms[trimmed]; ok {
		return c, true
	}
	if strings.Contains(trimmed, "-") {
		parts := strings.Split(trimmed, "-")
		category := ""
		for _, p := range parts {
			c, ok := b.terms[p]
			if !ok {
				return "", false
			}
			category = c
		}
		return category, true
	}
	return "", false
}

// Len returns the number of terms.
func (b *Buzzwords) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

// Compounds returns the number of multi-part terms.
func (b *Buzzwords) Compounds() int {
	if b == nil {
		return 0
	}
	return len(b.compound)
}

// Terms returns every term in sorted order.
func (b *Buzzwords) Terms() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.terms))
	for k := range b.terms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
