package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	events []Event
	err    error
}

func (r *recordingStore) Append(ctx context.Context, event Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func TestInbox_BuffersUntilFull(t *testing.T) {
	inbox := NewInbox(2)
	ctx := context.Background()

	require.NoError(t, inbox.Append(ctx, Event{Action: ActionPolicyCreated}))
	require.NoError(t, inbox.Append(ctx, Event{Action: ActionPolicyDeleted}))

	err := inbox.Append(ctx, Event{Action: ActionClaimFiled})
	assert.True(t, errors.Is(err, ErrInboxFull))

	first := <-inbox.Events()
	assert.Equal(t, ActionPolicyCreated, first.Action)
}

func TestMulti_FansOutToAllStores(t *testing.T) {
	first := &recordingStore{}
	second := &recordingStore{}
	sink := Multi{first, second}

	require.NoError(t, sink.Append(context.Background(), Event{Action: ActionClaimSettled}))

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
}

func TestMulti_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("broker down")
	first := &recordingStore{}
	failing := &recordingStore{err: boom}
	last := &recordingStore{}
	sink := Multi{first, failing, last}

	err := sink.Append(context.Background(), Event{Action: ActionClaimSettled})

	assert.True(t, errors.Is(err, boom))
	assert.Len(t, first.events, 1)
	assert.Empty(t, last.events)
}
