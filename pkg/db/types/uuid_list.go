// Package dbtypes holds column types gorm cannot map on its own.
package dbtypes

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDList is a Postgres uuid[] column. The array literal is handled by
// pq.StringArray; this type only converts between text and uuid.UUID.
type UUIDList []uuid.UUID

func (l *UUIDList) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan uuid list: %w", err)
	}
	out := make(UUIDList, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("scan uuid list: %w", err)
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

func (l UUIDList) Value() (driver.Value, error) {
	raw := make(pq.StringArray, len(l))
	for i, id := range l {
		raw[i] = id.String()
	}
	return raw.Value()
}
