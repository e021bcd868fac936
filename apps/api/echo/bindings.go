package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
)

var orderingParam = "ordering"

// Ordering binds ?ordering=-marks,student_name; a leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the ordering query param. Fields outside allowed, blank and repeated fields are rejected.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) error {
	val := ctx.QueryParam(orderingParam)
	if strings.TrimSpace(val) == "" {
		return nil
	}

	known := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		known[f] = true
	}
	seen := make(map[string]bool)

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		switch {
		case !known[field]:
			return orderingError("cannot order by " + `"` + field + `"` + ", expected one of: " + strings.Join(allowed, ", "))
		case seen[field]:
			return orderingError(`"` + field + `"` + " is repeated")
		}
		seen[field] = true
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func orderingError(msg string) error {
	return core.NewValidationError(errors.New("invalid ordering"), core.FieldError{Field: orderingParam, Error: msg})
}
