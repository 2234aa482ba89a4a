package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRoundTripAllKeys(t *testing.T) {
	for en, ru := range enToRu {
		if got := Convert(string(en), English, Russian); got != string(ru) {
			t.Errorf("Convert(%q, en, ru) = %q, want %q", en, got, string(ru))
		}
		back := Convert(Convert(string(en), English, Russian), Russian, English)
		if back != string(en) {
			t.Errorf("round trip of %q gave %q", en, back)
		}
	}
	for ru := range ruToEn {
		back := Convert(Convert(string(ru), Russian, English), English, Russian)
		if back != string(ru) {
			t.Errorf("round trip of %q gave %q", ru, back)
		}
	}
}

func TestTablesAreBijective(t *testing.T) {
	require.Equal(t, len(enToRu), len(ruToEn))
	for en, ru := range enToRu {
		assert.Equal(t, en, ruToEn[ru], "inverse of %q", ru)
	}
}

func TestConvertWords(t *testing.T) {
	tests := []struct {
		in       string
		from, to Layout
		want     string
	}{
		{"ghbdtn", English, Russian, "привет"},
		{"Ghbdtn", English, Russian, "Привет"},
		{"GHBDTN", English, Russian, "ПРИВЕТ"},
		{"vbh", English, Russian, "мир"},
		{"k.,jq", English, Russian, "любой"},
		{"[jhjij", English, Russian, "хорошо"},
		{"руддщ", Russian, English, "hello"},
		{"вщслук", Russian, English, "docker"},
		{"ghbdtn vbh", English, Russian, "привет мир"},
		{"123 !", English, Russian, "123 !"},
		{"same", English, English, "same"},
		{"", English, Russian, ""},
	}
	for _, tt := range tests {
		if got := Convert(tt.in, tt.from, tt.to); got != tt.want {
			t.Errorf("Convert(%q, %v, %v) = %q, want %q", tt.in, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		in   string
		want Layout
	}{
		{"hello", English},
		{"привет", Russian},
		{"helloмир", Mixed},
		{"123", Unknown},
		{"", Unknown},
		{"k.,jq", English},
		{"Ёлка", Russian},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.in), "Detect(%q)", tt.in)
	}
}

func TestDetectFlipsAfterConversion(t *testing.T) {
	words := []string{"ghbdtn", "vbh", "hello", "docker", "gjxtve"}
	for _, w := range words {
		from := Detect(w)
		require.True(t, from.Valid(), w)
		converted := Convert(w, from, from.Opposite())
		assert.Equal(t, from.Opposite(), Detect(converted), "Detect(%q)", converted)
	}
}

func TestToggle(t *testing.T) {
	got, to := Toggle("ghbdtn")
	assert.Equal(t, "привет", got)
	assert.Equal(t, Russian, to)

	got, to = Toggle("привет")
	assert.Equal(t, "ghbdtn", got)
	assert.Equal(t, English, to)

	got, to = Toggle("ghbвет")
	assert.Equal(t, "приdtn", got)
	assert.Equal(t, Mixed, to)

	got, to = Toggle("42")
	assert.Equal(t, "42", got)
	assert.Equal(t, Unknown, to)
}

func TestOppositeAndParse(t *testing.T) {
	assert.Equal(t, Russian, English.Opposite())
	assert.Equal(t, English, Russian.Opposite())
	assert.Equal(t, Mixed, Mixed.Opposite())

	l, ok := Parse("RU")
	assert.True(t, ok)
	assert.Equal(t, Russian, l)
	_, ok = Parse("de")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	c := Classify("ghbdtn,")
	assert.Equal(t, "ghbdtn", c.Core)
	assert.Equal(t, ",", c.Trailing)
	assert.Equal(t, English, c.Layout)
	assert.Equal(t, ClassDeterministic, c.Class)
	assert.Equal(t, "привет", c.Converted)
	assert.Equal(t, Russian, c.Target())
	assert.Equal(t, 6, c.Len())

	assert.Equal(t, ClassPartialMixed, Classify("ghbвет").Class)
	assert.Equal(t, ClassUnknown, Classify("12!").Class)
	// х converts to '[' which cannot be part of an English word
	assert.Equal(t, ClassAmbiguous, Classify("хлеб").Class)

	whole := ClassifyWhole("yj;")
	assert.Equal(t, "yj;", whole.Core)
	assert.Equal(t, "нож", whole.Converted)
	assert.Equal(t, ClassDeterministic, whole.Class)
}

func TestSplitTrailing(t *testing.T) {
	core, trailing := SplitTrailing("word?!")
	assert.Equal(t, "word", core)
	assert.Equal(t, "?!", trailing)

	core, trailing = SplitTrailing("...")
	assert.Equal(t, "", core)
	assert.Equal(t, "...", trailing)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("2025"))
	assert.True(t, IsNumeric("3.14"))
	assert.True(t, IsNumeric("10:30"))
	assert.False(t, IsNumeric("v2"))
	assert.False(t, IsNumeric("..."))
}

func TestIsMappableAndOpensWord(t *testing.T) {
	assert.True(t, IsMappable('.', English))
	assert.True(t, IsMappable(';', English))
	assert.False(t, IsMappable('!', English))
	assert.True(t, IsMappable('ж', Russian))
	assert.False(t, IsMappable('q', Russian))

	assert.True(t, OpensWord('['))
	assert.True(t, OpensWord('д'))
	assert.False(t, OpensWord('('))
	assert.False(t, OpensWord(' '))
}

func TestConvertScript(t *testing.T) {
	assert.Equal(t, "привет", ConvertScript("ghbвет", Russian))
	assert.Equal(t, "ghbdtn", ConvertScript("ghbвет", English))
	assert.Equal(t, "hello", ConvertScript("hello", English))
	assert.Equal(t, "x", ConvertScript("x", Mixed))
}
