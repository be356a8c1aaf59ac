package enums

import "slices"

// RefundCategory classifies the buyer's refund reason.
type RefundCategory string

const (
	RefundCategoryDamaged      RefundCategory = "damaged"
	RefundCategoryMissingItems RefundCategory = "missing_items"
	RefundCategoryWrongItems   RefundCategory = "wrong_items"
	RefundCategoryQuality      RefundCategory = "quality"
	RefundCategoryOther        RefundCategory = "other"
)

var validRefundCategories = []RefundCategory{
	RefundCategoryDamaged,
	RefundCategoryMissingItems,
	RefundCategoryWrongItems,
	RefundCategoryQuality,
	RefundCategoryOther,
}

func (c RefundCategory) IsValid() bool {
	return slices.Contains(validRefundCategories, c)
}

// ParseRefundCategory converts raw input into a RefundCategory.
func ParseRefundCategory(value string) (RefundCategory, error) {
	return parse(value, validRefundCategories, "refund category")
}
