package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/testutil"
)

func TestPostgres_BridgeBetweenInstances(t *testing.T) {
	d, cfg := testutil.NewPostgresDB(t)

	// Two instances sharing one database.
	busA, busB := NewBus(), NewBus()
	bridgeA := NewPGBridge(d.DB, cfg.DSN(), busA)
	bridgeB := NewPGBridge(d.DB, cfg.DSN(), busB)
	busA.SetBroadcaster(bridgeA)
	busB.SetBroadcaster(bridgeB)

	var (
		mu        sync.Mutex
		published int
		localA    int
		receivedB []EntityDeleted
	)
	busA.Subscribe("a", func(_ context.Context, evt EntityDeleted) error {
		mu.Lock()
		defer mu.Unlock()
		localA++
		return nil
	})
	busB.Subscribe("b", func(_ context.Context, evt EntityDeleted) error {
		mu.Lock()
		defer mu.Unlock()
		receivedB = append(receivedB, evt)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, b := range []*PGBridge{bridgeA, bridgeB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Listen(ctx))
		}()
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	evt := EntityDeleted{Kind: KindAnswer, ID: 9, QuestionID: 3}

	// The listener may not be subscribed yet when the first event goes
	// out, so keep publishing until one arrives.
	require.Eventually(t, func() bool {
		busA.Publish(ctx, evt)
		mu.Lock()
		defer mu.Unlock()
		published++
		return len(receivedB) > 0
	}, 20*time.Second, 250*time.Millisecond)

	// A's listener sees its own notifications too and must drop them.
	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return localA > published
	}, time.Second, 100*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	got := receivedB[0]
	assert.Equal(t, KindAnswer, got.Kind)
	assert.Equal(t, 9, got.ID)
	assert.Equal(t, 3, got.QuestionID)
	assert.Equal(t, bridgeA.Origin(), got.Origin)
	assert.Equal(t, published, localA)
}
