package identity

// Identity is the resolved principal behind an attendance action: the auth
// user and, when linked, the HR employee profile.
type Identity struct {
	UserID      int64  `json:"userId"`
	EmployeeID  *int64 `json:"employeeId,omitempty"`
	AccessLevel string `json:"accessLevel,omitempty"`
}

func (i Identity) HasEmployee() bool {
	return i.EmployeeID != nil
}

// BarcodeLookup is the read-only answer to a barcode existence check.
// Inactive barcodes are reported, never resolved.
type BarcodeLookup struct {
	Code         string `json:"code"`
	Active       bool   `json:"active"`
	EmployeeID   int64  `json:"employeeId"`
	EmployeeCode string `json:"employeeCode"`
	EmployeeName string `json:"employeeName"`
	Linked       bool   `json:"linked"`
	UserID       *int64 `json:"userId,omitempty"`
}
