package library

import (
	"strings"
)

// normTable folds accented Latin letters, ligatures and a few symbols to
// plain ASCII for identity comparison. Display names keep their original
// form; only the comparison key goes through this table. The table is
// deliberately fixed rather than a generic Unicode decomposition so that
// distinct names in non-Latin scripts never collapse together.
var normTable = map[rune]string{
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a", 'ā': "a", 'ă': "a", 'ą': "a",
	'ç': "c", 'ć': "c", 'č': "c",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e", 'ē': "e", 'ė': "e", 'ę': "e", 'ě': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i", 'ī': "i", 'į': "i", 'ı': "i",
	'ñ': "n", 'ń': "n", 'ň': "n",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o", 'ø': "o", 'ō': "o", 'ő': "o",
	'ù': "u", 'ú': "u", 'û': "u", 'ü': "u", 'ū': "u", 'ů': "u", 'ű': "u",
	'ý': "y", 'ÿ': "y",
	'ď': "d", 'đ': "d", 'ð': "d",
	'ĝ': "g", 'ğ': "g",
	'ľ': "l", 'ł': "l",
	'ř': "r",
	'ś': "s", 'š': "s",
	'ť': "t",
	'ź': "z", 'ż': "z", 'ž': "z",

	// Multi-character expansions
	'æ': "ae",
	'œ': "oe",
	'ß': "ss",
	'þ': "th",
	'&': "and",
}

// NormalizeName produces the comparison key for an artist, album or title
// name: lowercased with the folding table above applied. Names that differ
// only in case or in a folded diacritic share a key; semantically distinct
// names never do.
//
// This is pure and allocation-light: it sits on the reconciliation
// engine's hot path, called once per name per file.
func NormalizeName(name string) string {
	// The Turkish dotted capital I lowercases to "i" plus a combining
	// mark under full Unicode case mapping; substitute it up front so the
	// key stays plain ASCII.
	if strings.ContainsRune(name, 'İ') {
		name = strings.ReplaceAll(name, "İ", "I")
	}
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if repl, ok := normTable[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitPrefix splits a leading article off a name. The prefix keeps the
// casing it was seen with; the base name is trimmed so that doubled
// whitespace between article and name never leaks into the stored value.
// Only a single prefix word is recognized.
func SplitPrefix(name string, prefixes []string) (prefix, base string) {
	trimmed := strings.TrimSpace(name)
	for _, p := range prefixes {
		if len(trimmed) <= len(p) || !strings.EqualFold(trimmed[:len(p)], p) {
			continue
		}
		rest := trimmed[len(p):]
		stripped := strings.TrimLeft(rest, " \t")
		if stripped == rest || stripped == "" {
			// No whitespace separator, or nothing after the article.
			continue
		}
		return trimmed[:len(p)], stripped
	}
	return "", trimmed
}

// splitPrefix applies the configured article list.
func (l *Library) splitPrefix(name string) (prefix, base string) {
	return SplitPrefix(name, l.cfg.Prefixes)
}
