package query_test

import (
	"errors"
	"testing"

	"github.com/xraph/warden"
	"github.com/xraph/warden/query"
)

var sortable = []string{"id", "name", "created_at"}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name    string
		page    query.Page
		want    query.Page
		wantErr bool
	}{
		{
			name: "defaults",
			page: query.Page{},
			want: query.Page{SortKey: "id", SortDir: query.Asc},
		},
		{
			name: "explicit key and direction",
			page: query.Page{SortKey: "name", SortDir: query.Desc, Limit: 5},
			want: query.Page{SortKey: "name", SortDir: query.Desc, Limit: 5},
		},
		{
			name:    "unknown sort key",
			page:    query.Page{SortKey: "power_state"},
			wantErr: true,
		},
		{
			name:    "unknown direction",
			page:    query.Page{SortDir: "sideways"},
			wantErr: true,
		},
		{
			name:    "negative limit",
			page:    query.Page{Limit: -1},
			wantErr: true,
		},
		{
			name:    "marker with non-default sort",
			page:    query.Page{Marker: 3, SortKey: "name"},
			wantErr: true,
		},
		{
			name: "marker with default sort",
			page: query.Page{Marker: 3},
			want: query.Page{Marker: 3, SortKey: "id", SortDir: query.Asc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.page.Normalize(sortable)
			if tt.wantErr {
				if !errors.Is(err, warden.ErrInvalidParameter) {
					t.Fatalf("expected ErrInvalidParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
