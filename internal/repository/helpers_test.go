package repository

import (
	"testing"
	"time"
)

func TestClampPage(t *testing.T) {
	cases := []struct {
		limit, offset       int
		wantLimit, wantOffs int
	}{
		{limit: 0, offset: 0, wantLimit: 20, wantOffs: 0},
		{limit: -5, offset: -1, wantLimit: 20, wantOffs: 0},
		{limit: 50, offset: 10, wantLimit: 50, wantOffs: 10},
	}
	for _, tc := range cases {
		limit, offset := clampPage(tc.limit, tc.offset, 20)
		if limit != tc.wantLimit || offset != tc.wantOffs {
			t.Fatalf("clampPage(%d, %d) = %d, %d", tc.limit, tc.offset, limit, offset)
		}
	}
}

func TestParamConversions(t *testing.T) {
	if totalParam(nil).Valid {
		t.Fatalf("nil total should be NULL")
	}
	negative := -3
	if got := totalParam(&negative); !got.Valid || got.Int32 != 0 {
		t.Fatalf("negative total should clamp to 0, got %+v", got)
	}
	total := 42
	if got := totalParam(&total); got.Int32 != 42 {
		t.Fatalf("unexpected total %+v", got)
	}

	if dateParam(nil).Valid {
		t.Fatalf("nil date should be NULL")
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := dateParam(&day); !got.Valid || !got.Time.Equal(day) {
		t.Fatalf("unexpected date %+v", got)
	}
}
