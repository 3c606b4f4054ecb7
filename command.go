package mongofam

import (
	"fmt"
	"strings"
	"time"

	"github.com/maxbolgarin/lang"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FindAndModifyOptions is used to configure FindOneAndUpdate, FindOneAndReplace and FindOneAndDelete operations.
type FindAndModifyOptions struct {
	// Sort determines which document is modified if the filter matches several.
	// bson.D keeps the order of the sort keys.
	Sort bson.D
	// Projection limits the fields of the returned document.
	Projection M
	// Upsert inserts a new document if no document matches the filter. No-op in FindOneAndDelete.
	Upsert bool
	// ReturnNew returns the document after modification instead of the original. No-op in FindOneAndDelete.
	ReturnNew bool
	// BypassDocumentValidation lets the write skip schema validation of the collection.
	BypassDocumentValidation bool
	// ArrayFilters select the array elements to update. No-op in FindOneAndReplace and FindOneAndDelete.
	ArrayFilters []any
	// MaxTime is the server side time limit of the command.
	MaxTime time.Duration
	// Hint is the index to use, either its name or its key document.
	Hint any
}

// Change describes the modification applied by a findAndModify command.
// Exactly one of Update, Replacement or Remove must be set.
type Change struct {
	// Update must contain only operator keys, e.g. {$set: {key1: value1}}.
	Update M
	// Replacement is a whole document without operator keys.
	Replacement any
	// Remove deletes the matched document.
	Remove bool
}

// WriteConcern is the acknowledgement level requested for a write.
type WriteConcern struct {
	// W is the number of nodes (int) or a tag set name like "majority" (string).
	W any
	// Journal requests acknowledgement that the write reached the on-disk journal.
	Journal *bool
	// WTimeout is the time limit for the write concern. Zero means no limit.
	WTimeout time.Duration
}

// Document returns the writeConcern command field.
func (wc *WriteConcern) Document() bson.D {
	out := bson.D{}
	if wc == nil {
		return out
	}
	lang.IfF(wc.W != nil, func() { out = append(out, bson.E{Key: "w", Value: wc.W}) })
	lang.IfF(wc.Journal != nil, func() { out = append(out, bson.E{Key: "j", Value: lang.Deref(wc.Journal)}) })
	lang.IfV(wc.WTimeout, func() { out = append(out, bson.E{Key: "wtimeout", Value: wc.WTimeout.Milliseconds()}) })
	return out
}

// IsAcknowledged returns false for w: 0 without journaling.
func (wc *WriteConcern) IsAcknowledged() bool {
	if wc == nil {
		return true
	}
	w, ok := wc.W.(int)
	return !ok || w != 0 || lang.Deref(wc.Journal)
}

func (c Change) action() (bson.E, error) {
	set := 0
	lang.IfF(c.Update != nil, func() { set++ })
	lang.IfF(c.Replacement != nil, func() { set++ })
	lang.IfF(c.Remove, func() { set++ })
	if set != 1 {
		return bson.E{}, fmt.Errorf("%w: exactly one of update, replacement or remove must be set", ErrInvalidArgument)
	}

	switch {
	case c.Remove:
		return bson.E{Key: "remove", Value: true}, nil

	case c.Update != nil:
		if len(c.Update) == 0 {
			return bson.E{}, fmt.Errorf("%w: update document is empty", ErrInvalidArgument)
		}
		for k := range c.Update {
			if !strings.HasPrefix(k, "$") {
				return bson.E{}, fmt.Errorf("%w: update document must contain key beginning with '$', got %q", ErrInvalidArgument, k)
			}
		}
		return bson.E{Key: "update", Value: c.Update.Prepare()}, nil

	default:
		raw, err := bson.Marshal(c.Replacement)
		if err != nil {
			return bson.E{}, fmt.Errorf("%w: marshal replacement: %v", ErrInvalidArgument, err)
		}
		elems, err := bson.Raw(raw).Elements()
		if err != nil {
			return bson.E{}, fmt.Errorf("%w: replacement: %v", ErrInvalidArgument, err)
		}
		if len(elems) > 0 && strings.HasPrefix(elems[0].Key(), "$") {
			return bson.E{}, fmt.Errorf("%w: replacement document cannot contain keys beginning with '$'", ErrInvalidArgument)
		}
		return bson.E{Key: "update", Value: bson.Raw(raw)}, nil
	}
}

// buildFindAndModify returns the findAndModify command for the collection.
func buildFindAndModify(collName string, filter M, change Change, opts FindAndModifyOptions, wc *WriteConcern) (bson.D, error) {
	if collName == "" {
		return nil, fmt.Errorf("%w: no collection name provided", ErrInvalidArgument)
	}
	action, err := change.action()
	if err != nil {
		return nil, err
	}

	cmd := bson.D{
		{Key: "findAndModify", Value: collName},
		{Key: "query", Value: filter.Prepare()},
	}
	lang.IfF(len(opts.Sort) > 0, func() { cmd = append(cmd, bson.E{Key: "sort", Value: opts.Sort}) })
	lang.IfF(len(opts.Projection) > 0, func() { cmd = append(cmd, bson.E{Key: "fields", Value: opts.Projection.Prepare()}) })

	cmd = append(cmd, action)
	if !change.Remove {
		lang.IfV(opts.ReturnNew, func() { cmd = append(cmd, bson.E{Key: "new", Value: true}) })
		lang.IfV(opts.Upsert, func() { cmd = append(cmd, bson.E{Key: "upsert", Value: true}) })
	}
	if change.Update != nil && len(opts.ArrayFilters) > 0 {
		cmd = append(cmd, bson.E{Key: "arrayFilters", Value: opts.ArrayFilters})
	}

	lang.IfV(opts.BypassDocumentValidation, func() { cmd = append(cmd, bson.E{Key: "bypassDocumentValidation", Value: true}) })
	lang.IfV(opts.MaxTime, func() { cmd = append(cmd, bson.E{Key: "maxTimeMS", Value: opts.MaxTime.Milliseconds()}) })
	lang.IfF(opts.Hint != nil, func() { cmd = append(cmd, bson.E{Key: "hint", Value: opts.Hint}) })

	if wcDoc := wc.Document(); len(wcDoc) > 0 {
		cmd = append(cmd, bson.E{Key: "writeConcern", Value: wcDoc})
	}

	return cmd, nil
}
