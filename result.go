package mongofam

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// emptyDocument is the BSON encoding of {}.
var emptyDocument = bson.Raw{0x05, 0x00, 0x00, 0x00, 0x00}

// WriteConcernError is a durability failure reported by the server after the write itself succeeded.
type WriteConcernError struct {
	// Code is the server error code, e.g. 64 for WriteConcernFailed.
	Code int
	// Message is the server error message (errmsg).
	Message string
	// Details is the errInfo document. It is an empty document when the server sent none.
	Details bson.Raw
}

// Error implements the error interface.
func (e WriteConcernError) Error() string {
	return fmt.Sprintf("(%d) %s", e.Code, e.Message)
}

// HasDetails reports whether the server attached a non-empty errInfo document.
func (e WriteConcernError) HasDetails() bool {
	elems, err := e.Details.Elements()
	return err == nil && len(elems) > 0
}

// WriteConcernResult holds acknowledgement statistics for a write.
// An unacknowledged result carries no statistics.
type WriteConcernResult struct {
	// Acknowledged is true when the server replied to the write.
	Acknowledged bool
	// MatchedCount is the number of documents matched by the write.
	MatchedCount int
	// UpdatedExisting is true when an existing document was updated.
	UpdatedExisting bool
	// UpsertedID is the identifier of the upserted document, nil if nothing was upserted.
	UpsertedID *bson.RawValue
}

// AcknowledgedResult returns a result with statistics from a server reply.
func AcknowledgedResult(matchedCount int, updatedExisting bool, upsertedID *bson.RawValue) WriteConcernResult {
	return WriteConcernResult{
		Acknowledged:    true,
		MatchedCount:    matchedCount,
		UpdatedExisting: updatedExisting,
		UpsertedID:      upsertedID,
	}
}

// UnacknowledgedResult returns a result for a write sent with w: 0.
func UnacknowledgedResult() WriteConcernResult {
	return WriteConcernResult{}
}

// String returns a string representation of the result.
func (r WriteConcernResult) String() string {
	if !r.Acknowledged {
		return "unacknowledged"
	}
	if r.UpsertedID != nil {
		return fmt.Sprintf("n=%d updatedExisting=%t upserted=%s", r.MatchedCount, r.UpdatedExisting, r.UpsertedID.String())
	}
	return fmt.Sprintf("n=%d updatedExisting=%t", r.MatchedCount, r.UpdatedExisting)
}
