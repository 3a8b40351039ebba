package pkg

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/domain"
)

// newQueryContext creates a gin context for a GET request with the given raw query.
func newQueryContext(rawQuery string) *gin.Context {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/items?"+rawQuery, nil)
	return c
}

func TestParseQueryOptions_Defaults(t *testing.T) {
	opts := ParseQueryOptions(newQueryContext(""))

	if opts.Page != 1 {
		t.Errorf("Page = %d; want 1", opts.Page)
	}
	if opts.Limit != 10 {
		t.Errorf("Limit = %d; want 10", opts.Limit)
	}
	if len(opts.Search) != 0 || len(opts.Filters) != 0 || len(opts.OrderBy) != 0 {
		t.Errorf("expected no search, filters, or order; got %+v", opts)
	}
}

func TestParseQueryOptions_Clamping(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"negative page", "page=-1", 1, 10},
		{"zero limit", "limit=0", 1, 10},
		{"over max limit", "limit=500", 1, MaxLimit},
		{"garbage", "page=abc&limit=xyz", 1, 10},
		{"custom", "page=3&limit=25", 3, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := ParseQueryOptions(newQueryContext(tt.query))
			if opts.Page != tt.wantPage || opts.Limit != tt.wantLimit {
				t.Errorf("page/limit = %d/%d; want %d/%d", opts.Page, opts.Limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestParseQueryOptions_Search(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []domain.SearchTerm
	}{
		{"both present", "search_key=product_name&search_value=wid", []domain.SearchTerm{{Field: "productName", Value: "wid", Operator: domain.SearchContains}}},
		{"undefined key", "search_key=undefined&search_value=wid", nil},
		{"undefined value", "search_key=name&search_value=undefined", nil},
		{"missing value", "search_key=name", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := ParseQueryOptions(newQueryContext(tt.query))
			if len(opts.Search) != len(tt.want) {
				t.Fatalf("Search = %+v; want %+v", opts.Search, tt.want)
			}
			for i := range tt.want {
				if opts.Search[i] != tt.want[i] {
					t.Errorf("Search[%d] = %+v; want %+v", i, opts.Search[i], tt.want[i])
				}
			}
			if _, ok := opts.Filters["searchKey"]; ok {
				t.Error("search_key must not become a filter")
			}
		})
	}
}

func TestParseQueryOptions_FiltersAreCoerced(t *testing.T) {
	opts := ParseQueryOptions(newQueryContext("active=true&count=5&name=foo&unit_price=2.5&page=2"))

	if got, ok := opts.Filters["active"].(bool); !ok || !got {
		t.Errorf("active = %#v; want true", opts.Filters["active"])
	}
	if got, ok := opts.Filters["count"].(int64); !ok || got != 5 {
		t.Errorf("count = %#v; want int64(5)", opts.Filters["count"])
	}
	if got, ok := opts.Filters["name"].(string); !ok || got != "foo" {
		t.Errorf("name = %#v; want \"foo\"", opts.Filters["name"])
	}
	if got, ok := opts.Filters["unitPrice"].(float64); !ok || got != 2.5 {
		t.Errorf("unitPrice = %#v; want 2.5", opts.Filters["unitPrice"])
	}
	if _, ok := opts.Filters["page"]; ok {
		t.Error("page must not become a filter")
	}
}

func TestParseQueryOptions_Sort(t *testing.T) {
	tests := []struct {
		query string
		want  []domain.Order
	}{
		{"sort=unit_price:asc", []domain.Order{{Field: "unitPrice", Direction: "asc"}}},
		{"sort=name:DESC", []domain.Order{{Field: "name", Direction: "desc"}}},
		{"sort=name", nil},
		{"sort=name:sideways", nil},
		{"sort=na;me:asc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			opts := ParseQueryOptions(newQueryContext(tt.query))
			if len(opts.OrderBy) != len(tt.want) {
				t.Fatalf("OrderBy = %+v; want %+v", opts.OrderBy, tt.want)
			}
			for i := range tt.want {
				if opts.OrderBy[i] != tt.want[i] {
					t.Errorf("OrderBy[%d] = %+v; want %+v", i, opts.OrderBy[i], tt.want[i])
				}
			}
		})
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"5", int64(5)},
		{"-12", int64(-12)},
		{"3.75", 3.75},
		{"foo", "foo"},
		{"TRUE", true},
		{"False", false},
		{"1e3", int64(1000)},
		{" 5", int64(5)},
		{"5 ", int64(5)},
		{".5", 0.5},
		{"5.", int64(5)},
		{"+7", int64(7)},
		{"2.5e-1", 0.25},
		{"0x10", int64(16)},
		{"0b101", int64(5)},
		{"0o17", int64(15)},
		{"0xZZ", "0xZZ"},
		{"NaN", "NaN"},
		{"Infinity", "Infinity"},
		{"inf", "inf"},
		{"1_000", "1_000"},
		{"12abc", "12abc"},
		{"-", "-"},
		{"   ", "   "},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CoerceValue(tt.in); got != tt.want {
				t.Errorf("CoerceValue(%q) = %#v; want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidFieldName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"name", true},
		{"unitPrice", true},
		{"created_at", true},
		{"address.city", true},
		{"_id", true},
		{"1field", false},
		{"name;drop", false},
		{"a.", false},
		{"", false},
		{"name desc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFieldName(tt.name); got != tt.want {
				t.Errorf("ValidFieldName(%q) = %v; want %v", tt.name, got, tt.want)
			}
		})
	}
}
