package mongofam

import (
	"context"
)

// FindOneAndUpdate finds a document using filter, applies update to it and returns it.
// The document before the update is returned unless ReturnNew is set.
// It returns ErrNotFound if no document is matched. An upsert without ReturnNew returns the zero T.
func FindOneAndUpdate[T any](ctx context.Context, coll *Collection, filter, update M, opts ...FindAndModifyOptions) (T, error) {
	var result T
	if err := coll.FindOneAndUpdate(ctx, &result, filter, update, opts...); err != nil {
		return result, err
	}
	return result, nil
}

// FindOneAndUpdateFromDiff finds a document using filter, sets the non-nil fields of diff and returns it.
// It returns ErrNotFound if no document is matched.
func FindOneAndUpdateFromDiff[T any](ctx context.Context, coll *Collection, filter M, diff any, opts ...FindAndModifyOptions) (T, error) {
	var result T
	if err := coll.FindOneAndUpdateFromDiff(ctx, &result, filter, diff, opts...); err != nil {
		return result, err
	}
	return result, nil
}

// FindOneAndReplace finds a document using filter, replaces it and returns it.
// The document before the replacement is returned unless ReturnNew is set.
// It returns ErrNotFound if no document is matched.
func FindOneAndReplace[T any](ctx context.Context, coll *Collection, replacement T, filter M, opts ...FindAndModifyOptions) (T, error) {
	var result T
	if err := coll.FindOneAndReplace(ctx, &result, replacement, filter, opts...); err != nil {
		return result, err
	}
	return result, nil
}

// FindOneAndDelete finds a document using filter, deletes it and returns the deleted document.
// It returns ErrNotFound if no document is matched.
func FindOneAndDelete[T any](ctx context.Context, coll *Collection, filter M, opts ...FindAndModifyOptions) (T, error) {
	var result T
	if err := coll.FindOneAndDelete(ctx, &result, filter, opts...); err != nil {
		return result, err
	}
	return result, nil
}
