package mongofam

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Reply field names of the findAndModify command.
const (
	valueField             = "value"
	writeConcernErrorField = "writeConcernError"
	lastErrorObjectField   = "lastErrorObject"
)

// DecodeFunc decodes a BSON document into dest.
type DecodeFunc func(doc bson.Raw, dest any) error

// Interpret turns a findAndModify reply received from peer into a decoded document.
// It returns nil and no error if the command matched no document.
// A reply with a write concern error always produces *WriteConcernException, whatever the value field contains.
func Interpret[T any](reply bson.Raw, peer string) (*T, error) {
	var out T
	found, err := InterpretReply(reply, peer, &out, bson.Unmarshal)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// InterpretReply is like Interpret but decodes into dest using decode.
// It reports false if the reply carries no document.
func InterpretReply(reply bson.Raw, peer string, dest any, decode DecodeFunc) (bool, error) {
	if err := reply.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if wce, err := reply.LookupErr(writeConcernErrorField); err == nil {
		return false, newWriteConcernException(reply, wce, peer)
	}

	value, err := reply.LookupErr(valueField)
	if err != nil {
		return false, nil
	}
	doc, ok := value.DocumentOK()
	if !ok {
		// null or some unexpected scalar, both mean no document
		return false, nil
	}

	if err := decode(doc, dest); err != nil {
		return false, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return true, nil
}

func newWriteConcernException(reply bson.Raw, wce bson.RawValue, peer string) error {
	wceDoc, ok := wce.DocumentOK()
	if !ok {
		return fmt.Errorf("%w: %s is %s, not a document", ErrMalformedReply, writeConcernErrorField, wce.Type)
	}
	wcErr, err := extractWriteConcernError(wceDoc)
	if err != nil {
		return err
	}

	return &WriteConcernException{
		WriteConcernError: wcErr,
		Result:            ReplyResult(reply),
		Address:           peer,
	}
}

// extractWriteConcernError reads code, errmsg and errInfo from a writeConcernError document.
// code and errmsg are always sent by the server.
func extractWriteConcernError(doc bson.Raw) (WriteConcernError, error) {
	codeVal, err := doc.LookupErr("code")
	if err != nil {
		return WriteConcernError{}, fmt.Errorf("%w: %s.code is missing", ErrMalformedReply, writeConcernErrorField)
	}
	code, ok := numberAsInt(codeVal)
	if !ok {
		return WriteConcernError{}, fmt.Errorf("%w: %s.code is %s", ErrMalformedReply, writeConcernErrorField, codeVal.Type)
	}

	msgVal, err := doc.LookupErr("errmsg")
	if err != nil {
		return WriteConcernError{}, fmt.Errorf("%w: %s.errmsg is missing", ErrMalformedReply, writeConcernErrorField)
	}
	msg, ok := msgVal.StringValueOK()
	if !ok {
		return WriteConcernError{}, fmt.Errorf("%w: %s.errmsg is %s", ErrMalformedReply, writeConcernErrorField, msgVal.Type)
	}

	details := emptyDocument
	if v, err := doc.LookupErr("errInfo"); err == nil {
		if info, ok := v.DocumentOK(); ok {
			details = info
		}
	}

	return WriteConcernError{
		Code:    code,
		Message: msg,
		Details: details,
	}, nil
}

// buildWriteConcernResult reads write statistics from a lastErrorObject document.
// Missing fields take their zero values.
func buildWriteConcernResult(doc bson.Raw) WriteConcernResult {
	var updatedExisting bool
	if v, err := doc.LookupErr("updatedExisting"); err == nil {
		updatedExisting, _ = v.BooleanOK()
	}

	var n int
	if v, err := doc.LookupErr("n"); err == nil {
		n, _ = numberAsInt(v)
	}

	var upserted *bson.RawValue
	if v, err := doc.LookupErr("upserted"); err == nil {
		upserted = &v
	}

	return AcknowledgedResult(n, updatedExisting, upserted)
}

// numberAsInt reads any BSON number. Fractional values are truncated,
// NaN becomes 0 and out of range doubles and decimals saturate at the int32 bounds.
func numberAsInt(v bson.RawValue) (int, bool) {
	switch v.Type {
	case bson.TypeInt32:
		return int(v.Int32()), true
	case bson.TypeInt64:
		return int(v.Int64()), true
	case bson.TypeDouble:
		return floatAsInt(v.Double()), true
	case bson.TypeDecimal128:
		f, err := strconv.ParseFloat(v.Decimal128().String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return floatAsInt(f), true
	default:
		return 0, false
	}
}

func floatAsInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int(f)
	}
}

// ReplyResult returns the write statistics from lastErrorObject of a reply.
// A missing or non-document lastErrorObject is read as an empty document.
func ReplyResult(reply bson.Raw) WriteConcernResult {
	if v, err := reply.LookupErr(lastErrorObjectField); err == nil {
		if doc, ok := v.DocumentOK(); ok {
			return buildWriteConcernResult(doc)
		}
	}
	return buildWriteConcernResult(emptyDocument)
}
