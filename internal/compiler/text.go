package compiler

import (
	"strings"

	"github.com/kailas-cloud/searchbridge/internal/domain"

	"github.com/kailas-cloud/searchbridge/internal/domain/search/filter"
)

// renderQueryString wraps the term as a required wildcard match and appends one
// required disjunction group per equality clause: +*term* +(k:(a) OR k:(b)).
// Equality values containing < or > are rejected since query_string cannot escape them.
func renderQueryString(term string, equality []filter.Clause) (string, error) {
	var sb strings.Builder
	sb.WriteString("+*")
	sb.WriteString(term)
	sb.WriteString("*")

	for _, c := range equality {
		sb.WriteString(" +(")
		for i, v := range c.Values() {
			if strings.ContainsAny(v, "<>") {
				return "", domain.Compilef("filter %q: value %q contains < or >", c.Key(), v)
			}
			if i > 0 {
				sb.WriteString(" OR ")
			}
			sb.WriteString(c.Key())
			sb.WriteString(":(")
			sb.WriteString(escapeValue(v))
			sb.WriteString(")")
		}
		sb.WriteString(")")
	}
	return sb.String(), nil
}

func escapeValue(s string) string {
	return valueEscaper.Replace(s)
}

// valueEscaper escapes query_string reserved characters.
var valueEscaper = strings.NewReplacer(
	`\`, `\\`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`&`, `\&`,
	`|`, `\|`,
	`!`, `\!`,
	`(`, `\(`,
	`)`, `\)`,
	`{`, `\{`,
	`}`, `\}`,
	`[`, `\[`,
	`]`, `\]`,
	`^`, `\^`,
	`"`, `\"`,
	`~`, `\~`,
	`*`, `\*`,
	`?`, `\?`,
	`:`, `\:`,
	`/`, `\/`,
)
