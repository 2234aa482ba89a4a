package dictionary

import "textswitcher/internal/layout"

// Single-letter words of each language. A lone letter outside these sets is
// almost certainly a typo or an abbreviation.
var singleLetters = map[layout.Layout]map[string]bool{
	layout.English: set("a", "i"),
	layout.Russian: set("в", "к", "с", "у", "о", "и", "а", "я"),
}

// Short function words kept as typed even when their conversion looks
// plausible: they are too short for statistics to be trusted.
var shortWords = map[layout.Layout]map[string]bool{
	layout.English: set(
		"a", "an", "the", "i", "me", "my", "we", "us", "he", "she", "it", "they",
		"who", "what", "in", "on", "at", "to", "of", "by", "for", "with", "from",
		"up", "out", "and", "or", "but", "if", "so", "as", "than", "nor", "is",
		"be", "do", "go", "no", "ok", "hi", "oh", "yes", "yet", "not", "can",
		"may", "get", "let", "put", "set", "run", "see", "new", "old",
	),
	layout.Russian: set(
		"в", "на", "из", "за", "по", "до", "от", "с", "к", "у", "о", "об", "при",
		"для", "без", "под", "над", "про", "и", "а", "но", "да", "или", "что",
		"как", "так", "то", "не", "ни", "бы", "ли", "же", "ведь", "вот", "вон",
		"даже", "уже", "еще", "я", "ты", "он", "она", "оно", "мы", "вы", "они",
		"кто", "это", "нет", "все", "вся", "сам", "там", "тут", "где",
	),
}

// IsSingleLetterWord reports whether w is a one-letter word of l.
func IsSingleLetterWord(w string, l layout.Layout) bool {
	return singleLetters[l][Normalize(w)]
}

// IsShortWord reports whether w is a common short function word of l.
func IsShortWord(w string, l layout.Layout) bool {
	return shortWords[l][Normalize(w)]
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
