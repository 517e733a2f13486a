package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
)

// fakeStore counts saves and can fail or block on demand.
type fakeStore struct {
	mu      sync.Mutex
	saves   int
	err     error
	entered chan struct{} // closed-once signal that a save started
	release chan struct{} // save blocks until this closes, when set

	lastContent []*model.Element
}

func (f *fakeStore) CreateDocument(ctx context.Context, doc *model.Document) error { return nil }

func (f *fakeStore) LoadDocument(ctx context.Context, websiteID string) (*model.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) ListWebsiteIDs(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeStore) SaveDocument(ctx context.Context, websiteID string, content []*model.Element, pageSettings *model.PageSettings, patch model.SettingsPatch) error {
	f.mu.Lock()
	f.saves++
	f.lastContent = content
	entered, release, err := f.entered, f.release, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return err
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func emptySnapshot() Snapshot {
	return Snapshot{Content: []*model.Element{}}
}

func newTestCoordinator(store *fakeStore, bus *notify.Bus, opts Options) *Coordinator {
	return NewCoordinator("site-1", store, emptySnapshot, bus, nil, opts)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "clean", Clean.String())
	assert.Equal(t, "dirty", Dirty.String())
	assert.Equal(t, "saving", Saving.String())
	assert.Equal(t, "save-failed", SaveFailed.String())
}

func TestSaveWhileCleanIsNoOp(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, nil, Options{})

	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, 0, store.saveCount())
	assert.Equal(t, Clean, c.State())
}

func TestSaveSuccess(t *testing.T) {
	store := &fakeStore{}
	bus := notify.NewBus(nil)
	var completed []notify.Event
	bus.Subscribe(notify.SaveCompleted, func(e notify.Event) {
		completed = append(completed, e)
	})

	onSavedCalls := 0
	c := newTestCoordinator(store, bus, Options{OnSaved: func() { onSavedCalls++ }})

	c.MarkDirty()
	require.Equal(t, Dirty, c.State())

	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, Clean, c.State())
	assert.Equal(t, 1, store.saveCount())
	assert.Equal(t, 1, onSavedCalls)
	assert.False(t, c.LastSaved().IsZero())
	require.Len(t, completed, 1)
	assert.Equal(t, "site-1", completed[0].WebsiteID)
}

func TestSaveFailureThenRetry(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	bus := notify.NewBus(nil)
	var failed []notify.Event
	bus.Subscribe(notify.SaveFailed, func(e notify.Event) {
		failed = append(failed, e)
	})

	c := newTestCoordinator(store, bus, Options{})
	c.MarkDirty()

	err := c.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, SaveFailed, c.State())
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Detail, "disk full")

	// The next edit re-arms, and a retry persists the full snapshot.
	c.MarkDirty()
	assert.Equal(t, Dirty, c.State())

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, Clean, c.State())
	assert.Equal(t, 2, store.saveCount())
}

func TestConcurrentSaveIsCoalesced(t *testing.T) {
	store := &fakeStore{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestCoordinator(store, nil, Options{})
	c.MarkDirty()

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-store.entered
	assert.Equal(t, Saving, c.State())

	// A second trigger while in flight starts no second write.
	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, 1, store.saveCount())

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, Clean, c.State())
}

func TestEditDuringSaveLeavesSessionDirty(t *testing.T) {
	store := &fakeStore{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	onSavedCalls := 0
	c := newTestCoordinator(store, nil, Options{OnSaved: func() { onSavedCalls++ }})
	c.MarkDirty()

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-store.entered

	c.MarkDirty() // edit races the in-flight save

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, Dirty, c.State())
	assert.Equal(t, 0, onSavedCalls, "a stale save must not clear the dirty tree")
}

func TestContentChangedEventsMarkDirty(t *testing.T) {
	store := &fakeStore{}
	bus := notify.NewBus(nil)
	c := newTestCoordinator(store, bus, Options{})

	bus.Publish(notify.Event{Type: notify.ContentChanged, WebsiteID: "other-site"})
	assert.Equal(t, Clean, c.State())

	bus.Publish(notify.Event{Type: notify.ContentChanged, WebsiteID: "site-1"})
	assert.Equal(t, Dirty, c.State())
}

func TestRunFlushesOnShutdown(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, nil, Options{Interval: time.Hour})
	c.MarkDirty()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.Equal(t, 1, store.saveCount())
	assert.Equal(t, Clean, c.State())
}

func TestRunSavesOnTick(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, nil, Options{Interval: 10 * time.Millisecond})
	c.MarkDirty()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		return c.State() == Clean && store.saveCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStatusText(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		name      string
		state     State
		lastSaved time.Time
		want      string
	}{
		{"saving", Saving, time.Time{}, "Saving..."},
		{"failed", SaveFailed, now, "Save failed, click to retry"},
		{"dirty", Dirty, now, "Unsaved changes"},
		{"never saved", Clean, time.Time{}, "Not saved yet"},
		{"just now", Clean, now.Add(-3 * time.Second), "Saved just now"},
		{"seconds ago", Clean, now.Add(-42 * time.Second), "Saved 42s ago"},
		{"minutes ago", Clean, now.Add(-5 * time.Minute), "Saved 5m ago"},
		{"hours ago", Clean, now.Add(-3 * time.Hour), "Saved at 12:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusText(tt.state, tt.lastSaved, now))
		})
	}
}
