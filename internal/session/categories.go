package session

// Category type to distinguish attachment groups
type Category string

const (
	CategoryEvidence          Category = "evidence"
	CategoryStockpilePhoto    Category = "stockpile-photo"
	CategoryRecycledPhoto     Category = "recycled-photo"
	CategoryQualityMetricsIn  Category = "quality-metrics-in"
	CategoryQualityMetricsOut Category = "quality-metrics-out"
	CategoryHazardCertificate Category = "hazard-certificate"
)

// SubType refines a category into the business sub-kind the storage service
// tags files with. Only evidence photos carry sub-types today.
type SubType string

const (
	SubTypeNone            SubType = ""
	SubTypeWeighingSlip    SubType = "weighing-slip"
	SubTypeDeliveryReceipt SubType = "delivery-receipt"
	SubTypeVehiclePlate    SubType = "vehicle-plate"
	SubTypeOther           SubType = "other"
)

// UploadTarget is the explicit (category, sub-type) pair a batch upload is
// keyed by. The set of valid targets is a closed enumeration: upload routing
// never matches on raw strings.
type UploadTarget struct {
	Category Category
	SubType  SubType
}

// uploadTargets enumerates every valid (category, sub-type) pair.
var uploadTargets = []UploadTarget{
	{CategoryEvidence, SubTypeWeighingSlip},
	{CategoryEvidence, SubTypeDeliveryReceipt},
	{CategoryEvidence, SubTypeVehiclePlate},
	{CategoryEvidence, SubTypeOther},
	{CategoryStockpilePhoto, SubTypeNone},
	{CategoryRecycledPhoto, SubTypeNone},
	{CategoryQualityMetricsIn, SubTypeNone},
	{CategoryQualityMetricsOut, SubTypeNone},
	{CategoryHazardCertificate, SubTypeNone},
}

// singleSlotCategories hold at most one file; picking a new file replaces
// the previous one in place.
var singleSlotCategories = map[Category]bool{
	CategoryStockpilePhoto: true,
	CategoryRecycledPhoto:  true,
}

// ValidTarget reports whether the (category, sub-type) pair is part of the
// enumeration.
func ValidTarget(cat Category, sub SubType) bool {
	for _, t := range uploadTargets {
		if t.Category == cat && t.SubType == sub {
			return true
		}
	}
	return false
}

// IsSingleSlot reports whether the category holds at most one file.
func IsSingleSlot(cat Category) bool {
	return singleSlotCategories[cat]
}

// Categories lists every attachment category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryEvidence,
		CategoryStockpilePhoto,
		CategoryRecycledPhoto,
		CategoryQualityMetricsIn,
		CategoryQualityMetricsOut,
		CategoryHazardCertificate,
	}
}
