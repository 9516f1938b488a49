package resolver

import "strings"

// sqlKeywords holds the reserved words tokenizeIdentifiers skips so a
// literal filter's keywords aren't mistaken for field references.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "null": true, "is": true, "in": true, "like": true,
	"between": true, "as": true, "on": true, "join": true, "left": true,
	"right": true, "inner": true, "outer": true, "group": true, "by": true,
	"having": true, "order": true, "asc": true, "desc": true, "limit": true,
	"true": true, "false": true, "case": true, "when": true, "then": true,
	"else": true, "end": true, "cast": true, "distinct": true,
}

// tokenizeIdentifiers scans a literal SQL fragment for bare identifier
// tokens (spec §4.8: literal filters are "tokenized for identifier
// names"). It is deliberately a small hand-rolled scanner — just enough
// to pull out dotted names like `view.field` for existence/access
// checks — not a SQL statement parser: quoted strings and numeric
// literals are skipped outright, and no attempt is made to understand
// SQL grammar beyond token boundaries.
func tokenizeIdentifiers(sql string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		tok := cur.String()
		cur.Reset()
		if sqlKeywords[strings.ToLower(tok)] {
			return
		}
		if isNumeric(tok) {
			return
		}
		tokens = append(tokens, tok)
	}

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			flush()
			i++
			for i < len(runes) && runes[i] != '\'' {
				i++
			}
		case isIdentRune(r, cur.Len() == 0):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isIdentRune(r rune, atStart bool) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		return true
	case r >= '0' && r <= '9', r == '.':
		return !atStart
	default:
		return false
	}
}

func isNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
