package pkg

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/domain"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// reservedParams lists query parameter names used for pagination, search and
// sorting, not for filtering.
var reservedParams = map[string]bool{
	"page":         true,
	"limit":        true,
	"search_key":   true,
	"search_value": true,
	"sort":         true,
}

// validFieldName matches identifiers, optionally dotted for nested document fields.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)

// ValidFieldName reports whether name is safe to use as a column or document field.
func ValidFieldName(name string) bool {
	return validFieldName.MatchString(name)
}

// ParseQueryOptions extracts pagination, search, sorting, and filtering
// parameters from the query string.
//
//   - page, limit: default 1 and 10; limit is capped at MaxLimit.
//   - search_key, search_value: a single contains-search term, ignored when either
//     is empty or the literal "undefined".
//   - sort: "field:asc" or "field:desc".
//   - every other key is an exact-match filter with its value coerced by CoerceValue.
func ParseQueryOptions(c *gin.Context) domain.QueryOptions {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	opts := domain.QueryOptions{
		Page:  page,
		Limit: limit,
	}

	searchKey := strings.TrimSpace(c.Query("search_key"))
	searchValue := c.Query("search_value")
	if searchKey != "" && searchValue != "" && searchKey != "undefined" && searchValue != "undefined" {
		opts.Search = []domain.SearchTerm{{
			Field:    ToCamel(searchKey),
			Value:    searchValue,
			Operator: domain.SearchContains,
		}}
	}

	if order, ok := parseSort(c.Query("sort")); ok {
		opts.OrderBy = []domain.Order{order}
	}

	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		opts.Filters[ToCamel(key)] = CoerceValue(values[0])
	}

	return opts
}

func parseSort(raw string) (domain.Order, bool) {
	field, direction, ok := strings.Cut(raw, ":")
	if !ok {
		return domain.Order{}, false
	}
	field = ToCamel(strings.TrimSpace(field))
	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != domain.SortAsc && direction != domain.SortDesc {
		return domain.Order{}, false
	}
	if !ValidFieldName(field) {
		return domain.Order{}, false
	}
	return domain.Order{Field: field, Direction: direction}, true
}

// CoerceValue converts a query string value to a typed filter value:
// "true" and "false" in any case become booleans, numbers become int64 when
// whole and float64 otherwise, and anything else is returned unchanged.
// Numbers may be padded with spaces, use exponents, start or end with a dot,
// or carry a 0x, 0o or 0b prefix. NaN and infinities stay strings.
func CoerceValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	f, ok := parseNumber(s)
	if !ok {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger {
		return int64(f)
	}
	return f
}

// maxSafeInteger is the largest integer a float64 holds exactly.
const maxSafeInteger = 1<<53 - 1

func parseNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if len(t) > 2 && t[0] == '0' {
		base := 0
		switch t[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(t[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	if t == "" || strings.Trim(t, "0123456789+-.eE") != "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
