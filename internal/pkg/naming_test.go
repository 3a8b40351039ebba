package pkg

import (
	"reflect"
	"testing"
	"time"
)

func TestToCamel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"unit_price", "unitPrice"},
		{"unitPrice", "unitPrice"},
		{"UnitPrice", "unitPrice"},
		{"created-at", "createdAt"},
		{"first name", "firstName"},
		{"_id", "id"},
		{"user_id", "userId"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToCamel(tt.in); got != tt.want {
			t.Errorf("ToCamel(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestToSnakeAndKebab(t *testing.T) {
	tests := []struct{ in, snake, kebab string }{
		{"unitPrice", "unit_price", "unit-price"},
		{"UnitPrice", "unit_price", "unit-price"},
		{"userID", "user_id", "user-id"},
		{"HTTPServer", "http_server", "http-server"},
		{"order item", "order_item", "order-item"},
		{"already_snake", "already_snake", "already-snake"},
		{"v2Name", "v2_name", "v2-name"},
	}
	for _, tt := range tests {
		if got := ToSnake(tt.in); got != tt.snake {
			t.Errorf("ToSnake(%q) = %q; want %q", tt.in, got, tt.snake)
		}
		if got := ToKebab(tt.in); got != tt.kebab {
			t.Errorf("ToKebab(%q) = %q; want %q", tt.in, got, tt.kebab)
		}
	}
}

func TestToPascal(t *testing.T) {
	tests := []struct{ in, want string }{
		{"order_item", "OrderItem"},
		{"product", "Product"},
		{"orderItem", "OrderItem"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToPascal(tt.in); got != tt.want {
			t.Errorf("ToPascal(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestCamelizeKeys_Nested(t *testing.T) {
	when := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := map[string]any{
		"unit_price": 10,
		"created_at": when,
		"supplier_info": map[string]any{
			"contact_name": "Ann",
		},
		"line_items": []any{
			map[string]any{"item_id": 1},
			"plain",
		},
	}

	got := CamelizeKeys(in).(map[string]any)

	want := map[string]any{
		"unitPrice": 10,
		"createdAt": when,
		"supplierInfo": map[string]any{
			"contactName": "Ann",
		},
		"lineItems": []any{
			map[string]any{"itemId": 1},
			"plain",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CamelizeKeys() = %#v; want %#v", got, want)
	}
	if _, ok := got["createdAt"].(time.Time); !ok {
		t.Error("time.Time values must be left untouched")
	}
}

func TestCamelizeKeys_Idempotent(t *testing.T) {
	in := map[string]any{"unitPrice": 10, "nested": map[string]any{"itemId": 2}}
	once := CamelizeKeys(in)
	twice := CamelizeKeys(once)
	if !reflect.DeepEqual(once, in) {
		t.Errorf("camelCase input changed: %#v", once)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("CamelizeKeys not idempotent: %#v vs %#v", once, twice)
	}
}

func TestCamelizeKeys_Leaves(t *testing.T) {
	if got := CamelizeKeys("snake_value"); got != "snake_value" {
		t.Errorf("string leaf changed: %v", got)
	}
	if got := CamelizeKeys(nil); got != nil {
		t.Errorf("nil leaf changed: %v", got)
	}
}

