package app

import "strings"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks a CLI command that may change the catalog. It lives in
// memory with ID 0 until the command first mutates something; the
// persisted ID then versions the snapshot uploaded on Close.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
}

func NewOperation(operation string, args ...string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: strings.Join(args, " "),
		Status:     StatusSuccess,
	}
}

// Persisted reports whether the operation has a catalog row.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. It stays failed.
func (op *Operation) Fail() {
	op.Status = StatusError
}
