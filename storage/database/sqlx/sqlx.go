// Package sqlxrepos implements the repositories on PostgreSQL, with sqlx.
package sqlxrepos

import (
	"strings"

	"github.com/trezcool/campus/core"
)

// postgres error codes
const uniqueViolation = "23505"

// orderBy renders the allowed orderings, or fallback when none is.
func orderBy(orderings []core.DBOrdering, allowed map[string]bool, fallback string) string {
	list := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if allowed[ord.Field] {
			list = append(list, ord.String())
		}
	}
	if len(list) == 0 {
		return fallback
	}
	return strings.Join(list, ", ")
}
