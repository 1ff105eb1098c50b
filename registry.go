package match

import "slices"

type registryEntry struct {
	loc      Locator
	traderID string
}

// registry maps every resting order id to its locator.
// It also indexes ids by trader so a bulk cancel does not scan the book.
type registry struct {
	entries  map[uint64]registryEntry
	byTrader map[string]map[uint64]struct{}
}

func newRegistry() *registry {
	return &registry{
		entries:  make(map[uint64]registryEntry),
		byTrader: make(map[string]map[uint64]struct{}),
	}
}

func (r *registry) add(id uint64, traderID string, loc Locator) {
	r.entries[id] = registryEntry{loc: loc, traderID: traderID}

	ids, ok := r.byTrader[traderID]
	if !ok {
		ids = make(map[uint64]struct{})
		r.byTrader[traderID] = ids
	}
	ids[id] = struct{}{}
}

func (r *registry) get(id uint64) (Locator, bool) {
	entry, ok := r.entries[id]
	return entry.loc, ok
}

func (r *registry) remove(id uint64) {
	entry, ok := r.entries[id]
	if !ok {
		return
	}
	delete(r.entries, id)

	ids := r.byTrader[entry.traderID]
	delete(ids, id)
	if len(ids) == 0 {
		delete(r.byTrader, entry.traderID)
	}
}

// idsOf returns the resting order ids of a trader in ascending order.
func (r *registry) idsOf(traderID string) []uint64 {
	ids := r.byTrader[traderID]
	result := make([]uint64, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	slices.Sort(result)
	return result
}

func (r *registry) len() int {
	return len(r.entries)
}
