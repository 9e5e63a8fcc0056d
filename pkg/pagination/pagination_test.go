package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name         string
		in           Params
		defaultLimit int
		want         Params
	}{
		{name: "zero values", in: Params{}, defaultLimit: 5, want: Params{Page: 1, Limit: 5}},
		{name: "fallback default", in: Params{Page: 2}, defaultLimit: 0, want: Params{Page: 2, Limit: DefaultLimit}},
		{name: "capped", in: Params{Page: 3, Limit: 500}, defaultLimit: 10, want: Params{Page: 3, Limit: MaxLimit}},
		{name: "negative page", in: Params{Page: -4, Limit: 20}, defaultLimit: 10, want: Params{Page: 1, Limit: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in, tc.defaultLimit); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestOffsetAndTotalPages(t *testing.T) {
	if got := (Params{Page: 3, Limit: 10}).Offset(); got != 20 {
		t.Fatalf("expected offset 20, got %d", got)
	}
	if got := (Params{}).Offset(); got != 0 {
		t.Fatalf("expected offset 0, got %d", got)
	}
	if got := TotalPages(21, 10); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
	if got := TotalPages(0, 10); got != 0 {
		t.Fatalf("expected 0 pages, got %d", got)
	}
}

func TestNewPageNeverReturnsNilItems(t *testing.T) {
	page := NewPage[int](nil, 0, Params{Page: 1, Limit: 5})
	if page.Items == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if page.CurrentPage != 1 || page.PageSize != 5 || page.TotalPages != 0 {
		t.Fatalf("unexpected page meta %+v", page)
	}
}
