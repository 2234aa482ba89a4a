// Package layout maps characters between the two supported keyboard layouts.
//
// The tables are keyed by physical key position: the character a key produces
// under US QWERTY is paired with the character the same key (with the same
// shift state) produces under Russian ЙЦУКЕН. Each direction is a bijection
// over its domain, so converting a string and converting it back returns the
// original for every character that has a table entry:
//
//	Convert(Convert("ghbdtn", English, Russian), Russian, English) == "ghbdtn"
//
// Characters without an entry (digits, space, most symbols) pass through.
package layout
