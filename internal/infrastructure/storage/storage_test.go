package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"harmony/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "harmony.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_GetSet(t *testing.T) {
	store, _ := openTestStore(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var out payload
	found, err := store.Get("missing", &out)
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set("k1", payload{Name: "alpha", Count: 3}))

	found, err = store.Get("k1", &out)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "alpha", Count: 3}, out)

	// Second Set on the same key overwrites.
	require.NoError(t, store.Set("k1", payload{Name: "beta", Count: 9}))
	found, err = store.Get("k1", &out)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "beta", out.Name)
}

func TestPreferenceStore_DefaultsWhenEmpty(t *testing.T) {
	store, path := openTestStore(t)
	prefStore, err := NewPreferenceStore(store, path, zap.NewNop())
	require.NoError(t, err)
	defer prefStore.Close()

	prefs, err := prefStore.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, domain.DefaultDevicePreferences(), prefs)
}

func TestPreferenceStore_MergePersists(t *testing.T) {
	store, path := openTestStore(t)
	prefStore, err := NewPreferenceStore(store, path, zap.NewNop())
	require.NoError(t, err)
	defer prefStore.Close()

	ctx := context.Background()
	mic := "mic-123"

	merged, err := prefStore.Set(ctx, domain.PreferenceUpdate{AudioInputDeviceID: &mic})
	assert.NoError(t, err)
	assert.Equal(t, "mic-123", merged.AudioInputDeviceID)
	assert.Equal(t, domain.DefaultDevice, merged.AudioOutputDeviceID, "untouched slot keeps the sentinel")
	assert.Equal(t, domain.DefaultDevice, merged.VideoInputDeviceID)

	// A second store over the same KV sees the persisted value, not a cache.
	second, err := NewPreferenceStore(store, "", zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	prefs, err := second.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, merged, prefs)
}

func TestPreferenceStore_ConcurrentSwitchesKeepBothSlots(t *testing.T) {
	store, _ := openTestStore(t)
	prefStore, err := NewPreferenceStore(store, "", zap.NewNop())
	require.NoError(t, err)
	defer prefStore.Close()

	ctx := context.Background()
	const rounds = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			mic := fmt.Sprintf("mic-%d", i)
			_, err := prefStore.Set(ctx, domain.PreferenceUpdate{AudioInputDeviceID: &mic})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			cam := fmt.Sprintf("cam-%d", i)
			_, err := prefStore.Set(ctx, domain.PreferenceUpdate{VideoInputDeviceID: &cam})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	// Each goroutine only touches its own slot, so neither side's last
	// write may be lost to a stale merge from the other.
	prefs, err := prefStore.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("mic-%d", rounds-1), prefs.AudioInputDeviceID)
	assert.Equal(t, fmt.Sprintf("cam-%d", rounds-1), prefs.VideoInputDeviceID)
}

func TestPreferenceStore_EmptyFieldsReadAsSentinel(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.Set("device_preferences", domain.DevicePreferences{
		AudioInputDeviceID: "mic-1",
	}))

	prefStore, err := NewPreferenceStore(store, "", zap.NewNop())
	require.NoError(t, err)
	defer prefStore.Close()

	prefs, err := prefStore.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "mic-1", prefs.AudioInputDeviceID)
	assert.Equal(t, domain.DefaultDevice, prefs.AudioOutputDeviceID)
	assert.Equal(t, domain.DefaultDevice, prefs.VideoInputDeviceID)
}

func TestSettingsStore_ScreenShare(t *testing.T) {
	store, _ := openTestStore(t)
	settings := NewSettingsStore(store)
	ctx := context.Background()

	current, err := settings.ScreenShare(ctx)
	assert.NoError(t, err)
	assert.Equal(t, domain.DefaultScreenShareSettings(), current)

	fps := 15
	updated, err := settings.SetScreenShare(ctx, domain.ScreenShareUpdate{FPS: &fps})
	assert.NoError(t, err)
	assert.Equal(t, 15, updated.FPS)
	assert.Equal(t, "1080p", updated.Resolution, "unset fields keep their values")

	roundtrip, err := settings.ScreenShare(ctx)
	assert.NoError(t, err)
	assert.Equal(t, updated, roundtrip)
}

func TestSettingsStore_PipLayout(t *testing.T) {
	store, _ := openTestStore(t)
	settings := NewSettingsStore(store)
	ctx := context.Background()

	layout, err := settings.PipLayout(ctx)
	assert.NoError(t, err)
	assert.Equal(t, domain.DefaultPipLayoutSettings(), layout)

	want := domain.PipLayoutSettings{Corner: "top-left", Pinned: true, Scale: 0.5}
	require.NoError(t, settings.SetPipLayout(ctx, want))

	layout, err = settings.PipLayout(ctx)
	assert.NoError(t, err)
	assert.Equal(t, want, layout)
}
