// Package watcher turns file system changes under a workspace root into
// indexing work.
//
// An FSWatcher follows every directory of the root with fsnotify and feeds a
// Debouncer, which coalesces bursts of events per path. A Dispatcher then
// hashes changed files and either publishes file-change events to a broker
// or ingests them directly. Deleted files have their documents removed.
//
// Usage:
//
//	w, err := watcher.NewFSWatcher(watcher.Options{})
//	if err != nil {
//	    return err
//	}
//	d := watcher.NewDispatcher(root, pipeline, watcher.DispatchOptions{})
//	go d.Run(ctx, w.Events())
//	return w.Run(ctx, root)
package watcher
