package domain

// Process maps an upstream record to a StatusSummary.
// A nil record yields ZeroSummary. Process never fails.
func Process(record *RawRecord) StatusSummary {
	if record == nil {
		return ZeroSummary()
	}

	verified := 0
	for _, kind := range DocumentKinds {
		if record.Verified(kind) {
			verified++
		}
	}

	hasRequired := true
	for _, kind := range RequiredDocuments {
		if !record.Verified(kind) {
			hasRequired = false
			break
		}
	}

	return NewStatusSummary(verified, hasRequired, record.LastVerifiedOn)
}
