package builder

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/zsy619/mapcore/config"
	"github.com/zsy619/mapcore/errs"
)

// LoadMappers parses every path in paths against cfg, bounded to concurrency goroutines
// via ants — a supplemented feature (§5): the reference builder parses mappers one at a
// time, but nothing in the per-namespace model requires that, and a large mapper set
// benefits from parallel I/O and XML decoding the way the pool bounds concurrent
// connection creation. Each mapper still mutates cfg only through its own
// registration calls, which are already safe for concurrent use.
func LoadMappers(cfg *config.Configuration, paths []string, catalog TypeCatalog, props map[string]string, databaseID string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 4
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return errs.NewBuilder("failed to start mapper-loading pool: %v", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, p := range paths {
		path := p
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ParseMapperFile(cfg, path, catalog, props, databaseID); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = errs.NewBuilder("failed to submit mapper %q to loading pool: %v", path, submitErr)
			}
			mu.Unlock()
		}
	}

	wg.Wait()
	return firstErr
}
