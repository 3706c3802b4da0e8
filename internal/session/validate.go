package session

// Step validation. Validators are pure: they return the error map and never
// store it — the session owns the errors state.

const (
	StepClassification = 1
	StepCollection     = 2
	StepProcessing     = 3
	StepReview         = 4
)

const (
	msgRequired      = "This field is required"
	msgPositive      = "Must be greater than zero"
	msgFileRequired  = "At least one file is required"
	msgPhotoRequired = "A photo is required"
	msgInvalidValue  = "Invalid value for this field"
)

// AttachmentGroups is the read view the validators need: current files per
// category, hydrated and pending alike.
type AttachmentGroups map[Category][]*ManagedFile

func (g AttachmentGroups) hasAny(cat Category) bool {
	for _, f := range g[cat] {
		if f.Status != FileDeleting {
			return true
		}
	}
	return false
}

// ValidateStep runs the rules for one wizard step. Steps own only their own
// fields; step 4 is a review surface with no rules of its own.
func ValidateStep(step int, fields Fields, groups AttachmentGroups) (bool, map[string]string) {
	errs := map[string]string{}
	switch step {
	case StepClassification:
		if fields.Str(FieldWasteOwner) == "" {
			errs[string(FieldWasteOwner)] = msgRequired
		}
		if fields.Str(FieldWasteType) == "" {
			errs[string(FieldWasteType)] = msgRequired
		}

	case StepCollection:
		if fields.Num(FieldCollectedVolumeKg) <= 0 {
			errs[string(FieldCollectedVolumeKg)] = msgPositive
		}
		if fields.Str(FieldPickupLocation) == "" {
			errs[string(FieldPickupLocation)] = msgRequired
		}
		if fields.Str(FieldVehiclePlate) == "" {
			errs[string(FieldVehiclePlate)] = msgRequired
		}

	case StepProcessing:
		if fields.Flag(FieldStockpiled) {
			if fields.Num(FieldStockpileVolumeKg) <= 0 {
				errs[string(FieldStockpileVolumeKg)] = msgPositive
			}
			if _, ok := fields.Date(FieldStockInDate); !ok {
				errs[string(FieldStockInDate)] = msgRequired
			}
			if !groups.hasAny(CategoryStockpilePhoto) {
				errs[ErrKeyStockpilePhoto] = msgPhotoRequired
			}
		}
		if fields.Num(FieldRecycledVolumeKg) <= 0 {
			errs[string(FieldRecycledVolumeKg)] = msgPositive
		}
		if !groups.hasAny(CategoryRecycledPhoto) {
			errs[ErrKeyRecycledPhoto] = msgPhotoRequired
		}
	}
	return len(errs) == 0, errs
}

// stepOwner maps every validated key to the wizard step that owns it, used
// by the full-submission validator to route the user to the right step.
var stepOwner = map[string]int{
	string(FieldWasteOwner):   StepClassification,
	string(FieldWasteType):    StepClassification,
	string(FieldContractType): StepClassification,
	string(FieldHazardCode):   StepClassification,

	string(FieldCollectionDate):    StepCollection,
	string(FieldCollectedVolumeKg): StepCollection,
	string(FieldPickupLocation):    StepCollection,
	string(FieldVehiclePlate):      StepCollection,
	string(FieldPricePerKg):        StepCollection,
	ErrKeyEvidencePhotos:           StepCollection,

	string(FieldStockpiled):        StepProcessing,
	string(FieldStockpileVolumeKg): StepProcessing,
	string(FieldStockInDate):       StepProcessing,
	string(FieldRecycledVolumeKg):  StepProcessing,
	ErrKeyStockpilePhoto:           StepProcessing,
	ErrKeyRecycledPhoto:            StepProcessing,
	ErrKeyQualityMetricsIn:         StepProcessing,
	ErrKeyQualityMetricsOut:        StepProcessing,
	ErrKeyHazardCerts:              StepProcessing,
}

// ValidateSubmission re-checks the union of all steps' rules plus the
// submit-only requirements (contract type, hazard code, price, evidence and
// quality/hazard documents). It returns the combined error map and the
// lowest-numbered step owning at least one error, 0 when everything passes.
func ValidateSubmission(fields Fields, groups AttachmentGroups) (map[string]string, int) {
	errs := map[string]string{}
	for step := StepClassification; step <= StepProcessing; step++ {
		_, stepErrs := ValidateStep(step, fields, groups)
		for k, v := range stepErrs {
			errs[k] = v
		}
	}

	// Submit-only requirements, not gated by any step's Next.
	if fields.Str(FieldContractType) == "" {
		errs[string(FieldContractType)] = msgRequired
	}
	if fields.Str(FieldHazardCode) == "" {
		errs[string(FieldHazardCode)] = msgRequired
	}
	if fields.Num(FieldPricePerKg) <= 0 {
		errs[string(FieldPricePerKg)] = msgPositive
	}
	if !groups.hasAny(CategoryEvidence) {
		errs[ErrKeyEvidencePhotos] = msgFileRequired
	}
	if !groups.hasAny(CategoryQualityMetricsIn) {
		errs[ErrKeyQualityMetricsIn] = msgFileRequired
	}
	if !groups.hasAny(CategoryQualityMetricsOut) {
		errs[ErrKeyQualityMetricsOut] = msgFileRequired
	}
	if !groups.hasAny(CategoryHazardCertificate) {
		errs[ErrKeyHazardCerts] = msgFileRequired
	}

	if len(errs) == 0 {
		return errs, 0
	}
	return errs, firstOffendingStep(errs)
}

// firstOffendingStep picks the lowest-numbered step with at least one error,
// in fixed step-priority order.
func firstOffendingStep(errs map[string]string) int {
	first := StepReview
	for key := range errs {
		if step, ok := stepOwner[key]; ok && step < first {
			first = step
		}
	}
	return first
}
