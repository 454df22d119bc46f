package domain

// Correctable field names accepted by the correction endpoint. Anything
// outside this allowlist is rejected with a validation error.
const (
	FieldInvoiceNumber = "invoiceNumber"
	FieldInvoiceDate   = "invoiceDate"
	FieldCompanyName   = "companyName"
	FieldTotalAmount   = "totalAmount"
	FieldCurrencyCode  = "currencyCode"
	FieldContact       = "contact"
	FieldNotes         = "notes"
	FieldTags          = "tags"
	FieldSector        = "sector"
	FieldVendor        = "vendor"
	FieldStatus        = "status"
)

var correctableFields = map[string]struct{}{
	FieldInvoiceNumber: {},
	FieldInvoiceDate:   {},
	FieldCompanyName:   {},
	FieldTotalAmount:   {},
	FieldCurrencyCode:  {},
	FieldContact:       {},
	FieldNotes:         {},
	FieldTags:          {},
	FieldSector:        {},
	FieldVendor:        {},
	FieldStatus:        {},
}

// IsCorrectableField reports whether name is on the correction allowlist.
func IsCorrectableField(name string) bool {
	_, ok := correctableFields[name]
	return ok
}
