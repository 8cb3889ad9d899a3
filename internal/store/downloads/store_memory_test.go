package downloads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pkgstats/internal/ingest"
)

func testDownload(pkg string) ingest.Download {
	return ingest.Download{
		PackageName:      pkg,
		PackageVersion:   "1.0",
		DistributionType: ingest.DistSdist,
		DownloadTime:     time.Date(2013, 12, 8, 23, 24, 40, 0, time.UTC),
		UserAgent: ingest.UserAgent{
			InstallerType:    "pip",
			InstallerVersion: "1.4.1",
			PythonType:       "cpython",
			PythonVersion:    "2.7.6",
		},
	}
}

func TestInMemoryStoreCreateDownload(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.CreateDownload(ctx, testDownload("foo")))
	require.NoError(t, store.CreateDownload(ctx, testDownload("bar")))

	stored := store.Downloads()
	require.Len(t, stored, 2)
	require.Equal(t, "foo", stored[0].PackageName)
	require.Equal(t, "bar", stored[1].PackageName)
}

func TestInMemoryStoreFailWith(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	failure := errors.New("disk full")
	store.FailWith(failure)
	require.ErrorIs(t, store.CreateDownload(ctx, testDownload("foo")), failure)
	require.Empty(t, store.Downloads())

	store.FailWith(nil)
	require.NoError(t, store.CreateDownload(ctx, testDownload("foo")))
	require.Len(t, store.Downloads(), 1)
}

func TestInMemoryStoreConcurrentWrites(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.CreateDownload(ctx, testDownload("concurrent"))
		}()
	}
	wg.Wait()

	require.Len(t, store.Downloads(), goroutines)
}
