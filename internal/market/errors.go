package market

import (
	"fmt"
	"strings"
)

// UserInputError means the query text named no recognizable district.
// It carries suggestions and is never retried.
type UserInputError struct {
	Area        string
	Suggestions []string
}

func (e *UserInputError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("unrecognized area %q, did you mean: %s", e.Area, strings.Join(e.Suggestions, ", "))
	}
	return fmt.Sprintf("unrecognized area %q, expected an administrative district or road", e.Area)
}

// DataAbsentError means the query matched a district but produced no rows.
// OutsideWindow distinguishes "district has data, all of it too old" from
// "district not present in the source"; Districts lists what the source
// actually contains so callers can suggest alternatives.
type DataAbsentError struct {
	Area          string
	OutsideWindow bool
	WindowYears   int
	Districts     []string
}

func (e *DataAbsentError) Error() string {
	if e.OutsideWindow {
		return fmt.Sprintf("%q has transactions, but none within the past %d years", e.Area, e.WindowYears)
	}
	return fmt.Sprintf("no transactions for %q; available districts: %s", e.Area, strings.Join(e.Districts, ", "))
}
