package mongofam

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/maxbolgarin/lang"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// CommandRunner sends a database command and returns the server reply
// together with the address of the server that produced it.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd bson.D) (reply bson.Raw, peer string, err error)
}

// driverRunner runs commands through the mongo driver.
// A reply with a write concern error is returned as a reply, not as an error.
type driverRunner struct {
	db          *mongo.Database
	defaultPeer string
}

func (r driverRunner) RunCommand(ctx context.Context, cmd bson.D) (bson.Raw, string, error) {
	ctx, tracker := withPeerTracker(ctx)

	reply, err := r.db.RunCommand(ctx, cmd).Raw()
	peer := lang.If(tracker.address() != "", tracker.address(), r.defaultPeer)
	if err != nil {
		var we mongo.WriteException
		if errors.As(err, &we) && len(we.WriteErrors) == 0 && we.WriteConcernError != nil && len(we.Raw) > 0 {
			return we.Raw, peer, nil
		}
		return nil, peer, handleError(err, peer)
	}

	return reply, peer, nil
}

type peerKey struct{}

// peerTracker receives the address of the server a command was sent to.
// A retried command overwrites the address of the previous attempt.
type peerTracker struct {
	mu   sync.Mutex
	addr string
}

func withPeerTracker(ctx context.Context) (context.Context, *peerTracker) {
	t := &peerTracker{}
	return context.WithValue(ctx, peerKey{}, t), t
}

func (t *peerTracker) set(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addr = addr
}

func (t *peerTracker) address() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr
}

// newPeerMonitor returns a command monitor that reports server addresses to peer trackers
// found in command contexts. Commands without a tracker are ignored.
func newPeerMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(ctx context.Context, evt *event.CommandStartedEvent) {
			if t, ok := ctx.Value(peerKey{}).(*peerTracker); ok {
				t.set(addressFromConnectionID(evt.ConnectionID))
			}
		},
	}
}

// addressFromConnectionID strips the connection number from a driver connection ID,
// e.g. "localhost:27017[-4]" becomes "localhost:27017".
func addressFromConnectionID(id string) string {
	if i := strings.LastIndex(id, "[-"); i > 0 {
		return id[:i]
	}
	return id
}
