package models

import (
	"fmt"

	"github.com/google/uuid"
)

// BulkResult is the outcome of a bulk mutation. Every item is either counted
// as a success or contributes one entry to Errors.
type BulkResult struct {
	SuccessCount   int         `json:"success_count"`
	ErrorCount     int         `json:"error_count"`
	TotalRequested int         `json:"total_requested"`
	CreatedIDs     []uuid.UUID `json:"created_ids,omitempty"`
	Errors         []string    `json:"errors"`
}

// NewBulkResult creates an empty result for total requested items.
func NewBulkResult(total int) *BulkResult {
	return &BulkResult{TotalRequested: total, Errors: []string{}}
}

// Succeeded records one successful item.
func (r *BulkResult) Succeeded() {
	r.SuccessCount++
}

// Failed records one failed item.
func (r *BulkResult) Failed(format string, args ...any) {
	r.ErrorCount++
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
