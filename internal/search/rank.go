package search

import (
	"fmt"
	"strings"
)

// hostPenalty lowers the rank of pages from hosts that are mostly noise in
// history search: local development servers, search result pages and shops.
type hostPenalty struct {
	Modifier int
	Hosts    []string
}

var hostPenalties = []hostPenalty{
	{Modifier: -50, Hosts: []string{"localhost"}},
	{Modifier: -10, Hosts: []string{"google.com", "www.google.com", "kagi.com", "duckduckgo.com", "bing.com"}},
	{Modifier: -5, Hosts: []string{"amazon.com", "www.amazon.com"}},
}

// RankModifier returns the rank adjustment applied to results from host.
func RankModifier(host string) int {
	for _, p := range hostPenalties {
		for _, h := range p.Hosts {
			if h == host {
				return p.Modifier
			}
		}
	}
	return 0
}

// rankModifierSQL renders hostPenalties as a CASE over column.
func rankModifierSQL(column string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, p := range hostPenalties {
		quoted := make([]string, len(p.Hosts))
		for i, h := range p.Hosts {
			quoted[i] = "'" + strings.ReplaceAll(h, "'", "''") + "'"
		}
		fmt.Fprintf(&b, " WHEN %s IN (%s) THEN %d", column, strings.Join(quoted, ", "), p.Modifier)
	}
	b.WriteString(" ELSE 0 END")
	return b.String()
}
