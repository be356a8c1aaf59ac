package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter. Absent means
// fallback; present but non-numeric or outside [lo, hi] is a validation error
// naming the parameter.
func ParseQueryInt(r *http.Request, name string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" must be a whole number").
			WithDetails(map[string]any{"field": name})
	case n < lo || n > hi:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" is out of range").
			WithDetails(map[string]any{"field": name, "min": lo, "max": hi})
	}
	return n, nil
}
