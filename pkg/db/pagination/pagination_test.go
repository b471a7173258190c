package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-03-10T09:00:00Z"})
	if err != nil {
		t.Fatalf("encode cursor: %v", err)
	}

	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	assert.Equal(t, "42", decoded.ID)
	assert.Equal(t, "2026-03-10T09:00:00Z", decoded.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("not-base64!!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

type row struct {
	ID string
}

func TestBuildCursorPageInfo(t *testing.T) {
	extract := func(r *row) string { return r.ID }

	empty := BuildCursorPageInfo(nil, 2, extract)
	assert.False(t, empty.HasMore)
	assert.Empty(t, empty.NextPageToken)

	partial := BuildCursorPageInfo([]*row{{ID: "a"}}, 2, extract)
	assert.False(t, partial.HasMore)
	assert.Equal(t, "a", partial.NextPageToken)

	// The extra row past the limit only signals another page.
	full := BuildCursorPageInfo([]*row{{ID: "a"}, {ID: "b"}, {ID: "c"}}, 2, extract)
	assert.True(t, full.HasMore)
	assert.Equal(t, "b", full.NextPageToken)
}
