//go:build !unix

package storage

import "sync"

var locks sync.Map

// lockFile serializes writers within this process only.
func lockFile(path string) (func(), error) {
	v, _ := locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock, nil
}
