package analytics

import (
	"fmt"
	"strings"
)

// whereBuilder accumulates AND-joined conditions with ordinal placeholders.
// Both lib/pq and go-sqlite3 accept the $n form.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (b *whereBuilder) add(expr string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, fmt.Sprintf(expr, len(b.args)))
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " AND " + strings.Join(b.conds, " AND ")
}
