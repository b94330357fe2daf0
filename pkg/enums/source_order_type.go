package enums

import "fmt"

// SourceOrderType identifies which order kind caused an inventory movement.
type SourceOrderType string

const (
	SourceOrderTypeSales    SourceOrderType = "sales_order"
	SourceOrderTypePurchase SourceOrderType = "purchase_order"
)

var validSourceOrderTypes = []SourceOrderType{
	SourceOrderTypeSales,
	SourceOrderTypePurchase,
}

// IsValid reports whether the value is a known SourceOrderType.
func (t SourceOrderType) IsValid() bool {
	for _, candidate := range validSourceOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSourceOrderType converts raw input into a SourceOrderType.
func ParseSourceOrderType(value string) (SourceOrderType, error) {
	for _, candidate := range validSourceOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source order type %q", value)
}
