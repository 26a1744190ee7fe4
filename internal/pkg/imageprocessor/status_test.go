package imageprocessor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelmint/pixelmint/internal/pkg/cache"
)

func TestSetJobStatusReportsCacheFailure(t *testing.T) {
	// Point the cache at a closed port so every write fails. The cleanup
	// runs after the env restore and reconnects with the real settings.
	t.Cleanup(cache.SetupCache)
	t.Setenv("CACHE_HOST", "127.0.0.1")
	t.Setenv("CACHE_PORT", "1")
	cache.SetupCache()

	err := SetJobStatus("job-1", STATUS_PENDING)
	require.Error(t, err)
}
