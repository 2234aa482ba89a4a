package dictionary

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"textswitcher/internal/layout"
)

// SpellChecker is a membership test backed by a system spelling dictionary.
type SpellChecker interface {
	Check(word string, l layout.Layout) bool
}

// ErrNoDictionary is returned when no hunspell dictionary could be found.
var ErrNoDictionary = errors.New("dictionary: no hunspell dictionary found")

// Hunspell checks words against the stems of hunspell .dic files. Affix
// rules are not expanded, so inflected forms only match when the dictionary
// lists them.
type Hunspell struct {
	stems map[layout.Layout]map[string]struct{}
}

// Check implements SpellChecker.
func (h *Hunspell) Check(word string, l layout.Layout) bool {
	if h == nil {
		return false
	}
	_, ok := h.stems[l][Normalize(word)]
	return ok
}

// Has reports whether a dictionary was loaded for l.
func (h *Hunspell) Has(l layout.Layout) bool {
	return h != nil && len(h.stems[l]) > 0
}

// LoadHunspell reads the .dic files given per layout. Missing entries are
// looked up in the platform's default dictionary directories. It fails only
// when no dictionary at all could be loaded.
func LoadHunspell(paths map[layout.Layout]string) (*Hunspell, error) {
	h := &Hunspell{stems: map[layout.Layout]map[string]struct{}{}}
	var errs []error
	for _, l := range []layout.Layout{layout.English, layout.Russian} {
		path := paths[l]
		if path == "" {
			path = findDefaultDic(l)
		}
		if path == "" {
			continue
		}
		stems, err := readDic(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l, err))
			continue
		}
		h.stems[l] = stems
	}
	if len(h.stems) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDictionary
	}
	return h, errors.Join(errs...)
}

var dicNames = map[layout.Layout][]string{
	layout.English: {"en_US.dic", "en_GB.dic", "en.dic"},
	layout.Russian: {"ru_RU.dic", "ru.dic"},
}

// defaultDicDirs returns the platform-specific hunspell directories.
func defaultDicDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return []string{
			filepath.Join(home, "Library", "Spelling"),
			"/Library/Spelling",
			"/opt/homebrew/share/hunspell",
		}
	case "windows":
		return []string{filepath.Join(os.Getenv("LOCALAPPDATA"), "hunspell")}
	default:
		return []string{
			"/usr/share/hunspell",
			"/usr/share/myspell",
			"/usr/share/myspell/dicts",
		}
	}
}

func findDefaultDic(l layout.Layout) string {
	for _, dir := range defaultDicDirs() {
		for _, name := range dicNames[l] {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

func readDic(path string) (map[string]struct{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	enc := affEncoding(strings.TrimSuffix(path, filepath.Ext(path)) + ".aff")
	if enc != nil {
		raw, err = enc.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	stems := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if isDigits(line) {
				continue
			}
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// word/FLAGS followed by optional morphological fields
		if i := strings.IndexAny(line, "/\t "); i >= 0 {
			line = line[:i]
		}
		stems[Normalize(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return stems, nil
}

// affEncoding reads the SET directive of an .aff file. UTF-8 and unknown
// files return nil.
func affEncoding(path string) encoding.Encoding {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "SET" {
			continue
		}
		switch strings.ToUpper(fields[1]) {
		case "KOI8-R":
			return charmap.KOI8R
		case "KOI8-U":
			return charmap.KOI8U
		case "CP1251", "WINDOWS-1251", "MICROSOFT-CP1251":
			return charmap.Windows1251
		case "ISO8859-5", "ISO-8859-5":
			return charmap.ISO8859_5
		case "ISO8859-1", "ISO-8859-1":
			return charmap.ISO8859_1
		case "ISO8859-15", "ISO-8859-15":
			return charmap.ISO8859_15
		}
		return nil
	}
	return nil
}
