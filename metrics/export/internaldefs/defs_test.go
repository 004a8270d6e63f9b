package internaldefs

import (
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/stretchr/testify/require"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	m := goGuard.NewMetrics(goGuard.MetricsConfig{Enabled: true})
	snap := m.Snapshot()
	require.Len(t, CounterDefs, len(snap.Counters))

	seen := map[goGuard.MetricID]bool{}
	for _, def := range CounterDefs {
		require.False(t, seen[def.ID], "duplicate id for %s", def.Name)
		seen[def.ID] = true
		require.True(t, strings.HasPrefix(def.Name, "goguard_"))
		require.True(t, strings.HasSuffix(def.Name, "_total"))
		_, ok := snap.Counters[def.ID]
		require.True(t, ok, "%s is not a counter", def.Name)
	}
}

func TestBucketHelpers(t *testing.T) {
	require.Len(t, HistogramBounds, 8)
	require.Len(t, HistogramBoundSuffix, 8)

	n := NormalizeBuckets([]uint64{1, 2, 3})
	require.Equal(t, [8]uint64{1, 2, 3}, n)
	require.Equal(t, [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}, CumulativeBuckets(n))
}
