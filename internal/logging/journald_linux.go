//go:build linux

package logging

import (
	"log/slog"
	"strings"

	slogjournal "github.com/systemd/slog-journal"
)

func newJournalHandler(level slog.Leveler) (slog.Handler, error) {
	return slogjournal.NewHandler(&slogjournal.Options{
		Level: level,
		ReplaceGroup: func(key string) string {
			return journalKey(key)
		},
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			a.Key = journalKey(a.Key)
			return a
		},
	})
}

// journalKey maps an attribute key to a journal field name, which allows
// only upper-case letters, digits and underscores.
func journalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}
