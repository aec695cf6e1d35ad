package builder

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zsy619/mapcore/config"
	"github.com/zsy619/mapcore/errs"
)

// Watch is a supplemented feature (§5): it rebuilds a fresh Configuration from scratch
// whenever the root document or any currently-loaded mapper file changes on disk, and
// hands the result (or the build error) to onReload. It follows viper's
// WatchConfig/OnConfigChange hot-reload idiom (fsnotify events triggering a reload),
// applied here directly via fsnotify since the root document is XML, a format viper
// doesn't decode.
//
// The returned stop function closes the watcher; callers should defer it.
func Watch(rootPath string, catalog TypeCatalog, databaseID string, concurrency int, onReload func(*config.Configuration, error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.NewBuilder("failed to start configuration watcher: %v", err)
	}

	rebuild := func() {
		cfg := config.New()
		result, buildErr := BuildRoot(cfg, rootPath, catalog)
		if buildErr != nil {
			onReload(nil, buildErr)
			return
		}
		if loadErr := LoadMappers(cfg, result.MapperPaths, catalog, result.Properties, databaseID, concurrency); loadErr != nil {
			onReload(nil, loadErr)
			return
		}
		if sealErr := cfg.Seal(); sealErr != nil {
			onReload(nil, sealErr)
			return
		}
		onReload(cfg, nil)

		watched := watcher.WatchList()
		for _, p := range result.MapperPaths {
			if !contains(watched, p) {
				_ = watcher.Add(p)
			}
		}
	}

	if err := watcher.Add(rootPath); err != nil {
		watcher.Close()
		return nil, errs.WithContext(errs.NewBuilder("cannot watch root configuration %q: %v", rootPath, err), map[string]any{"path": rootPath})
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, rebuild)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	rebuild()
	return watcher.Close, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
