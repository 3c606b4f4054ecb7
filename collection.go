package mongofam

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Collection runs findAndModify commands against a MongoDB collection.
// It is safe for concurrent use by multiple goroutines.
type Collection struct {
	coll   *mongo.Collection
	name   string
	runner CommandRunner
	decode DecodeFunc
	wc     *WriteConcern
}

// Name returns the name of the collection.
func (m *Collection) Name() string {
	return m.name
}

// Collection returns an original mongo.Collection object.
func (m *Collection) Collection() *mongo.Collection {
	return m.coll
}

// FindOneAndUpdate finds a document using filter, applies update to it and decodes it into dest.
// Update map must contain only keys beginning with '$', e.g. {$set: {key1: value1}}.
// The document before the update is returned unless ReturnNew is set.
// It returns ErrNotFound if no document is matched and *WriteConcernException if the write concern was not satisfied.
func (m *Collection) FindOneAndUpdate(ctx context.Context, dest any, filter, update M, opts ...FindAndModifyOptions) error {
	_, err := m.Apply(ctx, dest, filter, Change{Update: update}, opts...)
	return err
}

// FindOneAndUpdateFromDiff is like FindOneAndUpdate but builds a $set update from a diff structure.
// Diff structure is a struct of pointers to field values, nil pointers are not updated.
// E.g. if you have structure:
//
//	type MyStruct struct {name string, index int}
//
// Diff structure will be:
//
//	type MyStructDiff struct {name *string, index *int}
func (m *Collection) FindOneAndUpdateFromDiff(ctx context.Context, dest any, filter M, diff any, opts ...FindAndModifyOptions) error {
	update, err := diffToUpdates(diff)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	_, err = m.Apply(ctx, dest, filter, Change{Update: update}, opts...)
	return err
}

// FindOneAndReplace finds a document using filter, replaces it with replacement and decodes it into dest.
// The document before the replacement is returned unless ReturnNew is set.
// It returns ErrNotFound if no document is matched and *WriteConcernException if the write concern was not satisfied.
func (m *Collection) FindOneAndReplace(ctx context.Context, dest, replacement any, filter M, opts ...FindAndModifyOptions) error {
	_, err := m.Apply(ctx, dest, filter, Change{Replacement: replacement}, opts...)
	return err
}

// FindOneAndDelete finds a document using filter, deletes it and decodes the deleted document into dest.
// It returns ErrNotFound if no document is matched and *WriteConcernException if the write concern was not satisfied.
func (m *Collection) FindOneAndDelete(ctx context.Context, dest any, filter M, opts ...FindAndModifyOptions) error {
	_, err := m.Apply(ctx, dest, filter, Change{Remove: true}, opts...)
	return err
}

// Apply runs a findAndModify command with the given change and decodes the returned document into dest.
// It returns the write statistics from lastErrorObject of the reply.
// Dest may be nil if the document is not needed. It returns ErrNotFound if the reply carries no document,
// unless the command upserted one: an upsert without ReturnNew has no document to return and dest is left untouched.
func (m *Collection) Apply(ctx context.Context, dest any, filter M, change Change, rawOpts ...FindAndModifyOptions) (WriteConcernResult, error) {
	var opts FindAndModifyOptions
	if len(rawOpts) > 0 {
		opts = rawOpts[0]
	}

	wc := m.wc
	if mongo.SessionFromContext(ctx) != nil {
		// the transaction carries its own write concern
		wc = nil
	}

	cmd, err := buildFindAndModify(m.name, filter, change, opts, wc)
	if err != nil {
		return WriteConcernResult{}, err
	}

	reply, peer, err := m.runner.RunCommand(ctx, cmd)
	if err != nil {
		return WriteConcernResult{}, err
	}

	target := dest
	if target == nil {
		target = &bson.Raw{}
	}
	found, err := InterpretReply(reply, peer, target, m.decode)
	if err != nil {
		return WriteConcernResult{}, err
	}

	res := ReplyResult(reply)
	if !wc.IsAcknowledged() {
		res = UnacknowledgedResult()
	}
	if !found && res.UpsertedID == nil {
		return res, ErrNotFound
	}
	return res, nil
}
