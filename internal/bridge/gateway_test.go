package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// fakeGateway is a scriptable Gateway that records every provider operation
// in the order it happened. Redirect failures are scripted as per-call error
// queues so a leg can fail once and succeed on retry.
type fakeGateway struct {
	calls        map[string]CallRef
	fetchErrs    map[string]error
	children     map[string][]CallRef
	childrenErr  error
	redirectErrs map[string][]error

	dialRef CallRef
	dialErr error

	participantRef CallRef
	participantErr error

	ops []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:        make(map[string]CallRef),
		fetchErrs:    make(map[string]error),
		children:     make(map[string][]CallRef),
		redirectErrs: make(map[string][]error),
	}
}

func (g *fakeGateway) FetchCall(_ context.Context, id string) (CallRef, error) {
	g.ops = append(g.ops, "fetch:"+id)
	if err := g.fetchErrs[id]; err != nil {
		return CallRef{}, err
	}
	call, ok := g.calls[id]
	if !ok {
		return CallRef{}, fmt.Errorf("%w: %s", ErrCallNotFound, id)
	}
	return call, nil
}

func (g *fakeGateway) ActiveChildren(_ context.Context, parentID string) ([]CallRef, error) {
	g.ops = append(g.ops, "children:"+parentID)
	if g.childrenErr != nil {
		return nil, g.childrenErr
	}
	return g.children[parentID], nil
}

func (g *fakeGateway) RedirectToConference(_ context.Context, callID, conference string) error {
	g.ops = append(g.ops, "redirect:"+callID+":"+conference)
	if queue := g.redirectErrs[callID]; len(queue) > 0 {
		err := queue[0]
		g.redirectErrs[callID] = queue[1:]
		return err
	}
	return nil
}

func (g *fakeGateway) DialIntoConference(_ context.Context, conference string, p DialParams) (CallRef, error) {
	g.ops = append(g.ops, "dial:"+conference+":"+p.To)
	if g.dialErr != nil {
		return CallRef{}, g.dialErr
	}
	return g.dialRef, nil
}

func (g *fakeGateway) AddParticipant(_ context.Context, conference string, p ParticipantParams) (CallRef, error) {
	g.ops = append(g.ops, "participant:"+conference+":"+p.To)
	if g.participantErr != nil {
		return CallRef{}, g.participantErr
	}
	return g.participantRef, nil
}

// opsMatching returns the recorded operations with the given prefix, in order.
func (g *fakeGateway) opsMatching(prefix string) []string {
	var matched []string
	for _, op := range g.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			matched = append(matched, op)
		}
	}
	return matched
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
