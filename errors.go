package mongofam

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maxbolgarin/lang"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Common errors
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrInvalidArgument = errors.New("invalid client argument")
	ErrInternal        = errors.New("internal error")
	ErrNetwork         = errors.New("network error")
	ErrTimeout         = errors.New("timeout")
	ErrBadServer       = errors.New("bad server")

	// ErrWriteConcern is wrapped by every *WriteConcernException.
	ErrWriteConcern = errors.New("write concern error")

	// ErrDecode means the returned document could not be decoded into the destination.
	ErrDecode = errors.New("decode error")

	// ErrMalformedReply means the server reply does not have the findAndModify shape.
	ErrMalformedReply = fmt.Errorf("%w: malformed reply", ErrBadServer)
)

// Mongo errors from codes that a findAndModify command can produce.
var (
	ErrInternalError                   = errors.New("InternalError, code 1")
	ErrBadValue                        = errors.New("BadValue, code 2")
	ErrFailedToParse                   = errors.New("FailedToParse, code 9")
	ErrUnauthorized                    = errors.New("Unauthorized, code 13")
	ErrTypeMismatch                    = errors.New("TypeMismatch, code 14")
	ErrNamespaceNotFound               = errors.New("NamespaceNotFound, code 26")
	ErrIndexNotFound                   = errors.New("IndexNotFound, code 27")
	ErrMaxTimeMSExpired                = errors.New("MaxTimeMSExpired, code 50")
	ErrWriteConcernFailed              = errors.New("WriteConcernFailed, code 64")
	ErrImmutableField                  = errors.New("ImmutableField, code 66")
	ErrUnknownReplWriteConcern         = errors.New("UnknownReplWriteConcern, code 79")
	ErrShutdownInProgress              = errors.New("ShutdownInProgress, code 91")
	ErrUnsatisfiableWriteConcern       = errors.New("UnsatisfiableWriteConcern, code 100")
	ErrWriteConflict                   = errors.New("WriteConflict, code 112")
	ErrDocumentValidationFailure       = errors.New("DocumentValidationFailure, code 121")
	ErrPrimarySteppedDown              = errors.New("PrimarySteppedDown, code 189")
	ErrNoSuchTransaction               = errors.New("NoSuchTransaction, code 251")
	ErrExceededTimeLimit               = errors.New("ExceededTimeLimit, code 262")
	ErrNotWritablePrimary              = errors.New("NotWritablePrimary, code 10107")
	ErrDuplicateKey                    = errors.New("DuplicateKey, code 11000")
	ErrInterruptedAtShutdown           = errors.New("InterruptedAtShutdown, code 11600")
	ErrInterruptedDueToReplStateChange = errors.New("InterruptedDueToReplStateChange, code 11602")
	ErrNotPrimaryNoSecondaryOk         = errors.New("NotPrimaryNoSecondaryOk, code 13435")
)

var errorMap = map[int32]error{
	1:     ErrInternalError,
	2:     ErrBadValue,
	9:     ErrFailedToParse,
	13:    ErrUnauthorized,
	14:    ErrTypeMismatch,
	26:    ErrNamespaceNotFound,
	27:    ErrIndexNotFound,
	50:    ErrMaxTimeMSExpired,
	64:    ErrWriteConcernFailed,
	66:    ErrImmutableField,
	79:    ErrUnknownReplWriteConcern,
	91:    ErrShutdownInProgress,
	100:   ErrUnsatisfiableWriteConcern,
	112:   ErrWriteConflict,
	121:   ErrDocumentValidationFailure,
	189:   ErrPrimarySteppedDown,
	251:   ErrNoSuchTransaction,
	262:   ErrExceededTimeLimit,
	10107: ErrNotWritablePrimary,
	11000: ErrDuplicateKey,
	11600: ErrInterruptedAtShutdown,
	11602: ErrInterruptedDueToReplStateChange,
	13435: ErrNotPrimaryNoSecondaryOk,
}

// ErrorFromCode returns the error for the server error code.
func ErrorFromCode(code int32) (error, bool) {
	err, ok := errorMap[code]
	return err, ok
}

// WriteConcernException is returned when the command was executed but its write concern was not satisfied.
// The write itself took effect, Result holds what the server reported about it.
type WriteConcernException struct {
	WriteConcernError WriteConcernError
	Result            WriteConcernResult
	// Address of the server that sent the reply.
	Address string
}

// Error implements the error interface.
func (e *WriteConcernException) Error() string {
	return fmt.Sprintf("write concern error from %s: %s",
		lang.If(e.Address != "", e.Address, "unknown server"), e.WriteConcernError)
}

// Unwrap allows errors.Is to match ErrWriteConcern and the error of the server code.
func (e *WriteConcernException) Unwrap() []error {
	errs := []error{ErrWriteConcern, e.WriteConcernError}
	if errFromCode, ok := ErrorFromCode(int32(e.WriteConcernError.Code)); ok {
		errs = append(errs, errFromCode)
	}
	return errs
}

// HandleMongoError maps an error of the mongo driver to one of the errors of this package.
func HandleMongoError(err error) error {
	return handleError(err, "")
}

func handleError(err error, peer string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound

	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)

	case mongo.IsNetworkError(err) ||
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", ErrNetwork, err)

	case mongo.IsTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)

	case strings.Contains(err.Error(), "must be a pointer to"):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)

	case errors.Is(err, mongo.ErrNilValue) ||
		errors.Is(err, mongo.ErrNilDocument):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var e mongo.CommandError
	if errors.As(err, &e) {
		errFromCode, ok := ErrorFromCode(e.Code)
		if !ok {
			return e
		}
		return fmt.Errorf("%w: %v", errFromCode, e)
	}

	var writeError mongo.WriteException
	if errors.As(err, &writeError) {
		if writeError.WriteConcernError != nil && len(writeError.WriteErrors) == 0 {
			return writeConcernFromDriver(writeError.WriteConcernError, peer)
		}
		var errs []error
		for _, we := range writeError.WriteErrors {
			errFromCode, ok := ErrorFromCode(int32(we.Code))
			if !ok {
				errs = append(errs, we)
				continue
			}
			errs = append(errs, fmt.Errorf("%w: %v", errFromCode, we))
		}
		if writeError.WriteConcernError != nil {
			errs = append(errs, writeConcernFromDriver(writeError.WriteConcernError, peer))
		}
		return errors.Join(errs...)
	}

	var marshalError mongo.MarshalError
	if errors.As(err, &marshalError) {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, marshalError)
	}

	return err
}

// writeConcernFromDriver is used when the driver did not keep the raw reply,
// so lastErrorObject is unknown and the result keeps its defaults.
func writeConcernFromDriver(wce *mongo.WriteConcernError, peer string) error {
	details := wce.Details
	if len(details) == 0 {
		details = emptyDocument
	}
	return &WriteConcernException{
		WriteConcernError: WriteConcernError{
			Code:    wce.Code,
			Message: wce.Message,
			Details: details,
		},
		Result:  AcknowledgedResult(0, false, nil),
		Address: peer,
	}
}
