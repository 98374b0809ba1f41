package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTieredScenario(t *testing.T) {
	t.Parallel()

	assets := fstest.MapFS{
		"alpha_focus1_realm1.txt": &fstest.MapFile{Data: []byte("first essential")},
		"alpha_focus1_realm2.txt": &fstest.MapFile{Data: []byte("second essential")},
		"alpha_focus2_realm1.txt": &fstest.MapFile{Data: []byte("near term")},
	}
	store := NewStore(assets, &memStorage{})
	orch := NewOrchestrator(store)
	defer orch.Close()

	manifest := Manifest{
		Essential: []string{"alpha_focus1_realm1.txt", "alpha_focus1_realm2.txt"},
		NearTerm:  []string{"alpha_focus2_realm1.txt"},
		OnDemand:  []string{"alpha_focus3_realm1.txt"},
	}

	report := orch.LoadTiered(context.Background(), manifest, Profile{}, 500*time.Millisecond)

	assert.False(t, report.BudgetExceeded)
	assert.Len(t, report.Loaded, 2)
	assert.Empty(t, report.Cancelled)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, report.NearTermScheduled)
	assert.Less(t, report.Elapsed, 500*time.Millisecond)

	// The near-term tier fills in asynchronously after LoadTiered returns.
	assert.Eventually(t, func() bool {
		return store.Stats().CacheEntries == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoadTieredBudgetEnforcement(t *testing.T) {
	t.Parallel()

	assets := fstest.MapFS{}
	var names []string
	for realm := 1; realm <= 6; realm++ {
		name := fmt.Sprintf("alpha_focus1_realm%d.txt", realm)
		assets[name] = &fstest.MapFile{Data: []byte("slow content")}
		names = append(names, name)
	}

	store := NewStore(&slowFS{inner: assets, delay: 20 * time.Millisecond}, &memStorage{})
	require.NoError(t, store.EnsureIndex(context.Background()))

	orch := NewOrchestrator(store, WithWorkers(1))
	defer orch.Close()

	budget := 50 * time.Millisecond
	start := time.Now()
	report := orch.LoadTiered(context.Background(), Manifest{Essential: names}, Profile{}, budget)
	elapsed := time.Since(start)

	assert.True(t, report.BudgetExceeded)
	assert.NotEmpty(t, report.Cancelled, "budget overrun must leave unresolved keys")
	assert.NotEmpty(t, report.Loaded, "work done before the cutover is kept")
	assert.Empty(t, report.Failed)
	assert.Equal(t, 6, len(report.Loaded)+len(report.Cancelled))

	// The cutover is bounded by the budget plus polling slack, never by
	// the slowest outstanding read chain.
	assert.Less(t, elapsed, budget+150*time.Millisecond)

	// Cancelled keys still resolve on demand.
	content, err := store.Get(context.Background(), report.Cancelled[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("slow content"), content)
}

func TestLoadTieredPerKeyFailure(t *testing.T) {
	t.Parallel()

	assets := fstest.MapFS{
		"alpha_focus1_realm1.txt": &fstest.MapFile{Data: []byte("present")},
	}
	store := NewStore(assets, &memStorage{})
	orch := NewOrchestrator(store)
	defer orch.Close()

	manifest := Manifest{
		Essential: []string{"alpha_focus1_realm1.txt", "ghost_focus9_realm9.txt"},
	}
	report := orch.LoadTiered(context.Background(), manifest, Profile{}, 500*time.Millisecond)

	assert.Len(t, report.Loaded, 1)
	require.Len(t, report.Failed, 1)
	err := report.Failed[Key{Category: "ghost", Focus: 9, Realm: 9}]
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, report.BudgetExceeded)
}

func TestLoadTieredProfileInterpolation(t *testing.T) {
	t.Parallel()

	assets := fstest.MapFS{
		"guide_focus7_realm1.txt": &fstest.MapFile{Data: []byte("life path seven")},
		"guide_focus3_realm2.txt": &fstest.MapFile{Data: []byte("expression three")},
	}
	store := NewStore(assets, &memStorage{})
	orch := NewOrchestrator(store)
	defer orch.Close()

	manifest := Manifest{
		Essential: []string{
			"guide_focus{life_path}_realm1.txt",
			"guide_focus{expression}_realm2.txt",
		},
	}
	profile := Profile{LifePath: 7, Expression: 3}
	report := orch.LoadTiered(context.Background(), manifest, profile, 500*time.Millisecond)

	assert.ElementsMatch(t, []Key{
		{Category: "guide", Focus: 7, Realm: 1},
		{Category: "guide", Focus: 3, Realm: 2},
	}, report.Loaded)
}

func TestLoadTieredSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	store := NewStore(fstest.MapFS{}, &memStorage{})
	orch := NewOrchestrator(store)
	defer orch.Close()

	manifest := Manifest{
		Essential: []string{"not a content file at all"},
		NearTerm:  []string{"ALSO_WRONG.txt"},
	}
	report := orch.LoadTiered(context.Background(), manifest, Profile{}, 100*time.Millisecond)

	assert.Len(t, report.Skipped, 2)
	assert.Empty(t, report.Loaded)
	assert.Empty(t, report.Failed)
	assert.Zero(t, report.NearTermScheduled)
}

func TestLoadTieredEmptyManifest(t *testing.T) {
	t.Parallel()

	store := NewStore(fstest.MapFS{}, &memStorage{})
	orch := NewOrchestrator(store)
	defer orch.Close()

	report := orch.LoadTiered(context.Background(), Manifest{}, Profile{}, 100*time.Millisecond)

	assert.Empty(t, report.Loaded)
	assert.Empty(t, report.Cancelled)
	assert.False(t, report.BudgetExceeded)
	assert.Less(t, report.Elapsed, 100*time.Millisecond)
}

func TestCloseStopsNearTermWarmup(t *testing.T) {
	t.Parallel()

	assets := fstest.MapFS{}
	var near []string
	for realm := 1; realm <= 9; realm++ {
		name := fmt.Sprintf("alpha_focus1_realm%d.txt", realm)
		assets[name] = &fstest.MapFile{Data: []byte("x")}
		near = append(near, name)
	}
	store := NewStore(&slowFS{inner: assets, delay: 20 * time.Millisecond}, &memStorage{})
	require.NoError(t, store.EnsureIndex(context.Background()))

	orch := NewOrchestrator(store)
	orch.LoadTiered(context.Background(), Manifest{NearTerm: near}, Profile{}, 100*time.Millisecond)

	start := time.Now()
	orch.Close()

	// Close waits for at most the read in flight, not the whole tier.
	assert.Less(t, time.Since(start), 9*20*time.Millisecond)
}

func TestLoadTieredSupersedesPreviousNearTerm(t *testing.T) {
	t.Parallel()

	assets := fstest.MapFS{
		"alpha_focus1_realm1.txt": &fstest.MapFile{Data: []byte("a")},
		"alpha_focus1_realm2.txt": &fstest.MapFile{Data: []byte("b")},
	}
	store := NewStore(assets, &memStorage{})
	orch := NewOrchestrator(store)
	defer orch.Close()

	orch.LoadTiered(context.Background(), Manifest{NearTerm: []string{"alpha_focus1_realm1.txt"}}, Profile{}, 100*time.Millisecond)
	report := orch.LoadTiered(context.Background(), Manifest{NearTerm: []string{"alpha_focus1_realm2.txt"}}, Profile{}, 100*time.Millisecond)

	assert.Equal(t, 1, report.NearTermScheduled)
	assert.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), Key{Category: "alpha", Focus: 1, Realm: 2})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

// slowFS delays every Open, simulating cold-storage latency.
type slowFS struct {
	inner fs.FS
	delay time.Duration
}

func (s *slowFS) Open(name string) (fs.File, error) {
	time.Sleep(s.delay)
	return s.inner.Open(name)
}
