package history

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onchaincommerce/minibet/game"
)

// Accumulator collects pages for one player, backing a "load more" listing.
type Accumulator struct {
	svc    *Service
	player common.Address

	mu      sync.Mutex
	records []game.WinRecord
	next    int
	hasMore bool
	loaded  bool
}

// NewAccumulator starts an empty listing for player.
func NewAccumulator(svc *Service, player common.Address) *Accumulator {
	return &Accumulator{svc: svc, player: player, next: 1}
}

// Load resets the listing and fetches the first page.
func (a *Accumulator) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.svc.Page(ctx, a.player, 1)
	if err != nil {
		return err
	}
	a.records = Merge(nil, p.Records)
	a.next = 2
	a.hasMore = p.HasMore
	a.loaded = true
	return nil
}

// LoadMore fetches the next page if the previous one was full. It returns
// the number of new records.
func (a *Accumulator) LoadMore(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded || !a.hasMore {
		return 0, nil
	}
	p, err := a.svc.Page(ctx, a.player, a.next)
	if err != nil {
		return 0, err
	}
	before := len(a.records)
	a.records = Merge(a.records, p.Records)
	a.next++
	a.hasMore = p.HasMore
	return len(a.records) - before, nil
}

// Records returns the records collected so far filtered by view.
func (a *Accumulator) Records(view View) []game.WinRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Filter(append([]game.WinRecord(nil), a.records...), view)
}

// HasMore reports whether LoadMore may return new records.
func (a *Accumulator) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMore
}
