package enums

import "fmt"

// MovementType classifies a stock-affecting event in the movement log.
type MovementType string

const (
	MovementTypeSale            MovementType = "sale"
	MovementTypePurchaseReceipt MovementType = "purchase_receipt"
	MovementTypeAdjustment      MovementType = "adjustment"
	MovementTypeTransfer        MovementType = "transfer"
)

var validMovementTypes = []MovementType{
	MovementTypeSale,
	MovementTypePurchaseReceipt,
	MovementTypeAdjustment,
	MovementTypeTransfer,
}

// IsValid reports whether the value is a known MovementType.
func (t MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
