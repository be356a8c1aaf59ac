// Package enums holds the string enums shared by the orderflow models, the
// API and the event payloads. Each mirrors a Postgres enum type.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches value against valid after trimming and lower-casing it, so
// query strings like "?status=Pending" resolve.
func parse[T ~string](value string, valid []T, kind string) (T, error) {
	want := T(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(valid, want) {
		return want, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
