// Package corpus loads regression corpora and scores a corrector against
// them.
//
// A corpus groups test cases into named categories. Each case has the
// text as typed, the text expected after correction and whether a
// conversion is expected at all.
package corpus

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed data/corpus.schema.json
var schemaJSON []byte

//go:embed data/smoke.json
var smokeJSON []byte

// Case is one test.
type Case struct {
	ID       string
	Input    string
	Expected string
	Convert  bool
	Category string
}

// Corpus is a loaded corpus.
type Corpus struct {
	Categories map[string][]Case
}

type rawCase struct {
	ID            json.RawMessage `json:"id"`
	Input         string          `json:"input"`
	Corrupted     string          `json:"corrupted"`
	Expected      string          `json:"expected"`
	ShouldConvert *bool           `json:"should_convert"`
}

type rawCorpus struct {
	Categories map[string]struct {
		Tests []rawCase `json:"tests"`
	} `json:"categories"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("corpus.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("corpus.schema.json")
	})
	return schema, schemaErr
}

// Load reads a corpus file.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Bundled returns the small smoke corpus shipped with the binary.
func Bundled() *Corpus {
	c, err := Parse(smokeJSON)
	if err != nil {
		panic(fmt.Sprintf("corpus: bundled smoke corpus: %v", err))
	}
	return c
}

// Parse decodes and validates corpus JSON. Cases without an id are
// numbered within their category; should_convert defaults to true.
func Parse(data []byte) (*Corpus, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}

	var raw rawCorpus
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	c := &Corpus{Categories: make(map[string][]Case, len(raw.Categories))}
	for name, cat := range raw.Categories {
		cases := make([]Case, 0, len(cat.Tests))
		for i, rc := range cat.Tests {
			tc := Case{
				ID:       caseID(rc.ID, name, i),
				Input:    rc.Input,
				Expected: rc.Expected,
				Convert:  true,
				Category: name,
			}
			if tc.Input == "" {
				tc.Input = rc.Corrupted
			}
			if rc.ShouldConvert != nil {
				tc.Convert = *rc.ShouldConvert
			}
			cases = append(cases, tc)
		}
		c.Categories[name] = cases
	}
	return c, nil
}

func caseID(raw json.RawMessage, category string, i int) string {
	if len(raw) > 0 {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return string(raw)
	}
	return fmt.Sprintf("%s-%d", category, i+1)
}

// Names returns the category names in sorted order.
func (c *Corpus) Names() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of cases.
func (c *Corpus) Len() int {
	n := 0
	for _, cases := range c.Categories {
		n += len(cases)
	}
	return n
}

// Cases returns all cases ordered by category name, optionally limited to
// one category.
func (c *Corpus) Cases(category string) []Case {
	var out []Case
	for _, name := range c.Names() {
		if category != "" && name != category {
			continue
		}
		out = append(out, c.Categories[name]...)
	}
	return out
}
