package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-assistant/internal/models"
)

type fakeSource struct {
	mu    sync.Mutex
	rows  []models.Transaction
	err   error
	gate  chan struct{}
	calls atomic.Int64

	// ctxErr is the load context's error once the gate opened.
	ctxErr error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Load(ctx context.Context) ([]models.Transaction, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErr = ctx.Err()
	return f.rows, f.err
}

func (f *fakeSource) set(rows []models.Transaction, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

func priced(country, price string) models.Transaction {
	return models.Transaction{
		PurchaseDate: time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		SellingPrice: decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Country:      country,
	}
}

func TestStoreSnapshotLoadsOnce(t *testing.T) {
	src := &fakeSource{rows: []models.Transaction{priced("France", "10")}, gate: make(chan struct{})}
	store := NewStore(src, nil)

	const callers = 20
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i], errs[i] = store.Snapshot(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int64(1), src.calls.Load())
	assert.Equal(t, int64(1), store.Loads())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, snaps[0], snaps[i])
	}

	again, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, snaps[0], again)
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestStoreSnapshotOutlivesCancelledCaller(t *testing.T) {
	src := &fakeSource{rows: []models.Transaction{priced("France", "10")}, gate: make(chan struct{})}
	store := NewStore(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.Snapshot(ctx)
		firstErr <- err
	}()

	waiter := make(chan *Snapshot, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		snap, err := store.Snapshot(context.Background())
		assert.NoError(t, err)
		waiter <- snap
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.gate)
	snap := <-waiter
	require.NotNil(t, snap)
	assert.Len(t, snap.Rows, 1)
	assert.Equal(t, int64(1), src.calls.Load())

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.NoError(t, src.ctxErr, "load context must not inherit the caller's cancellation")
}

func TestStoreLoadTimeout(t *testing.T) {
	src := &blockingSource{}
	store := NewStore(src, nil)
	store.LoadTimeout = 20 * time.Millisecond

	_, err := store.Snapshot(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingSource struct{}

func (blockingSource) Name() string { return "blocking" }

func (blockingSource) Load(ctx context.Context) ([]models.Transaction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreReloadReplacesVocabulary(t *testing.T) {
	src := &fakeSource{rows: []models.Transaction{priced("France", "10")}}
	store := NewStore(src, nil)

	first, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"France"}, first.Values(models.ColumnCountry))

	src.set([]models.Transaction{priced("India", "10"), priced("Peru", "5")}, nil)
	second, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"India", "Peru"}, second.Values(models.ColumnCountry))

	current, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, current)
	assert.Equal(t, []string{"France"}, first.Values(models.ColumnCountry))
}

func TestStoreReloadFailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{rows: []models.Transaction{priced("France", "10")}}
	store := NewStore(src, nil)

	first, err := store.Snapshot(context.Background())
	require.NoError(t, err)

	src.set(nil, errors.New("disk gone"))
	_, err = store.Reload(context.Background())
	require.Error(t, err)

	current, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestStoreLoadErrorRetries(t *testing.T) {
	src := &fakeSource{err: errors.New("not yet")}
	store := NewStore(src, nil)

	_, err := store.Snapshot(context.Background())
	require.Error(t, err)

	src.set([]models.Transaction{priced("France", "10")}, nil)
	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 1)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestStoreWithoutSource(t *testing.T) {
	store := NewStore(nil, nil)
	_, err := store.Snapshot(context.Background())
	assert.Error(t, err)

	snap := store.Set([]models.Transaction{priced("France", "1")})
	got, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, got)
}

func TestSnapshotUsable(t *testing.T) {
	var nilSnap *Snapshot
	assert.False(t, nilSnap.Usable())
	assert.Nil(t, nilSnap.Values(models.ColumnCountry))

	store := NewStore(nil, nil)
	assert.False(t, store.Set(nil).Usable())
	assert.False(t, store.Set([]models.Transaction{{Country: "France"}}).Usable())
	assert.True(t, store.Set([]models.Transaction{priced("France", "0")}).Usable())
}

func TestStoreStats(t *testing.T) {
	store := NewStore(nil, nil)
	assert.Equal(t, map[string]any{"loaded": false}, store.Stats())

	store.Set([]models.Transaction{priced("France", "10"), {Country: "India"}})
	stats := store.Stats()
	assert.Equal(t, true, stats["loaded"])
	assert.Equal(t, 2, stats["record_count"])
	assert.Equal(t, 1, stats["priced_count"])
	assert.Equal(t, 2, stats[string(models.ColumnCountry)])
}
