// Package dictionary answers "is this a word" for both layouts.
//
// The bundled lists are ordered by frequency and double as the training
// corpus for the n-gram scorer when no n-gram tables are configured. A
// hunspell-backed SpellChecker covers the long tail when the system has
// dictionaries installed.
package dictionary

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"

	"textswitcher/internal/layout"
)

//go:embed data/en.txt
var bundledEnglish string

//go:embed data/ru.txt
var bundledRussian string

// Dictionary is an immutable set of words per layout with frequency ranks.
type Dictionary struct {
	ranks map[layout.Layout]map[string]int
	words map[layout.Layout][]string
}

// Bundled returns the dictionary compiled into the binary.
func Bundled() *Dictionary {
	d := newDictionary()
	_ = d.read(layout.English, strings.NewReader(bundledEnglish))
	_ = d.read(layout.Russian, strings.NewReader(bundledRussian))
	return d
}

// Load reads word lists from disk, one word per line in frequency order.
// Layouts without a path fall back to the bundled list. Lines may carry a
// rank prefix ("12→слово" or "12 слово"), which is ignored.
func Load(paths map[layout.Layout]string) (*Dictionary, error) {
	d := newDictionary()
	for _, l := range []layout.Layout{layout.English, layout.Russian} {
		path := paths[l]
		if path == "" {
			src := bundledEnglish
			if l == layout.Russian {
				src = bundledRussian
			}
			_ = d.read(l, strings.NewReader(src))
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s word list: %w", l, err)
		}
		err = d.read(l, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s word list: %w", l, err)
		}
	}
	return d, nil
}

func newDictionary() *Dictionary {
	return &Dictionary{
		ranks: map[layout.Layout]map[string]int{
			layout.English: {},
			layout.Russian: {},
		},
		words: map[layout.Layout][]string{},
	}
}

func (d *Dictionary) read(l layout.Layout, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, "→"); i >= 0 {
			line = strings.TrimSpace(line[i+len("→"):])
		} else if fields := strings.Fields(line); len(fields) == 2 && isDigits(fields[0]) {
			line = fields[1]
		}
		w := Normalize(line)
		if _, dup := d.ranks[l][w]; dup {
			continue
		}
		d.ranks[l][w] = len(d.words[l]) + 1
		d.words[l] = append(d.words[l], w)
	}
	return scanner.Err()
}

// Contains reports whether word is a known word of layout l.
func (d *Dictionary) Contains(word string, l layout.Layout) bool {
	if d == nil {
		return false
	}
	_, ok := d.ranks[l][Normalize(word)]
	return ok
}

// Rank returns the 1-based frequency rank of word.
func (d *Dictionary) Rank(word string, l layout.Layout) (int, bool) {
	if d == nil {
		return 0, false
	}
	r, ok := d.ranks[l][Normalize(word)]
	return r, ok
}

// Words returns the words of l in frequency order. The slice must not be
// modified.
func (d *Dictionary) Words(l layout.Layout) []string {
	if d == nil {
		return nil
	}
	return d.words[l]
}

// Len returns the number of words known for l.
func (d *Dictionary) Len(l layout.Layout) int {
	if d == nil {
		return 0
	}
	return len(d.words[l])
}

// Normalize case-folds word and folds ё into е, which Russian text uses
// interchangeably.
func Normalize(word string) string {
	w := cases.Fold().String(word)
	return strings.ReplaceAll(w, "ё", "е")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
