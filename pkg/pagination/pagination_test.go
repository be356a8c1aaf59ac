package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC), ID: uuid.New()}
	token := c.Encode()
	for _, r := range token {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("token %q is not URL safe", token)
		}
	}
	got, err := Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) || got.ID != c.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, c)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm9kb3Q", "MTIz.bm90LWEtdXVpZA"} {
		if _, err := Decode(token); err != ErrInvalidCursor {
			t.Fatalf("token %q: expected ErrInvalidCursor, got %v", token, err)
		}
	}
	if c, err := Decode("  "); c != nil || err != nil {
		t.Fatalf("blank token should mean first page")
	}
}

func TestWindow(t *testing.T) {
	cases := map[int][2]int{0: {DefaultLimit, DefaultLimit + 1}, 5: {5, 6}, 1000: {MaxLimit, MaxLimit + 1}}
	for in, want := range cases {
		size, fetch := Window(in)
		if size != want[0] || fetch != want[1] {
			t.Fatalf("Window(%d) = %d,%d", in, size, fetch)
		}
	}
}

func TestPageCursorPointsAtLastServedRow(t *testing.T) {
	base := time.Now().UTC()
	rows := []Cursor{
		{CreatedAt: base, ID: uuid.New()},
		{CreatedAt: base.Add(time.Second), ID: uuid.New()},
		{CreatedAt: base.Add(2 * time.Second), ID: uuid.New()},
	}
	self := func(c Cursor) Cursor { return c }

	page, next := Page(rows, 2, self)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected two rows and a cursor, got %d %q", len(page), next)
	}
	decoded, _ := Decode(next)
	if decoded.ID != rows[1].ID {
		t.Fatalf("cursor should point at the last served row")
	}

	if _, next := Page(rows[:2], 2, self); next != "" {
		t.Fatalf("exact fit should be the last page")
	}
}
