package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "covera/pkg/domain"
	audit "covera/pkg/platform/audit"
	"covera/pkg/platform/audit/store/memory"
)

func TestWorkerDrainsInbox(t *testing.T) {
	store := memory.New()
	inbox := make(chan audit.Event, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		w := NewWorker(store, inbox)
		done <- w.Run(ctx)
	}()

	inbox <- audit.Event{Action: audit.ActionPolicyCreated, PolicyID: 1, Principal: id.PrincipalID("alice")}
	inbox <- audit.Event{Action: audit.ActionClaimSettled, PolicyID: 1, ClaimID: 0, Amount: 1000}

	require.Eventually(t, func() bool {
		events, err := store.ListRecent(context.Background(), 10)
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, audit.ActionClaimSettled, events[0].Action)
	require.Equal(t, audit.ActionPolicyCreated, events[1].Action)
}
