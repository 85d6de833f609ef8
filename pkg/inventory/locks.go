package inventory

import (
	"context"
	"sync"
)

// ProductLocks serializes work per product id. Locks for different ids are
// independent; idle entries are released so the map does not grow unbounded.
// 商品ID単位の排他制御
type ProductLocks struct {
	mu    sync.Mutex
	locks map[int64]*productLock
}

type productLock struct {
	sem  chan struct{}
	refs int
}

// NewProductLocks creates an empty lock table
func NewProductLocks() *ProductLocks {
	return &ProductLocks{locks: make(map[int64]*productLock)}
}

// Lock waits until the product's critical section is free or ctx is done.
// On success it returns the unlock func; otherwise ctx.Err().
func (l *ProductLocks) Lock(ctx context.Context, productID int64) (unlock func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	pl, ok := l.locks[productID]
	if !ok {
		pl = &productLock{sem: make(chan struct{}, 1)}
		l.locks[productID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	select {
	case pl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(productID, pl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-pl.sem
			l.release(productID, pl)
		})
	}, nil
}

func (l *ProductLocks) release(productID int64, pl *productLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, productID)
	}
}

// size returns the number of tracked ids
func (l *ProductLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
