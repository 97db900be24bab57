package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy renders orderings whose field is in `allowed` (api field -> column) as a SQL ORDER BY list.
// Unknown fields are ignored; `fallback` is used when nothing remains.
func OrderBy(orderings []DBOrdering, allowed map[string]string, fallback string) string {
	cols := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			cols = append(cols, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(cols) == 0 {
		return fallback
	}
	return strings.Join(cols, ", ")
}
