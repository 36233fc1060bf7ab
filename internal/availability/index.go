// Package availability keeps, per apartment, the committed date ranges ordered by
// check-in. It is a derived cache of the booking store: mutations come only from
// the reservation arbiter while it holds the apartment's exclusivity.
package availability

import (
	"sort"
	"sync"

	"stayreserve/internal/domain"
)

type Entry struct {
	BookingID string
	Range     domain.DateRange
}

type apartmentRanges struct {
	mu      sync.RWMutex
	entries []Entry
	loaded  bool
	// overlapping is set when the store handed over ranges that overlap each
	// other. Otherwise check-outs are ordered like check-ins.
	overlapping bool
}

type Index struct {
	mu         sync.RWMutex
	apartments map[int64]*apartmentRanges
}

func NewIndex() *Index {
	return &Index{apartments: make(map[int64]*apartmentRanges)}
}

func (x *Index) get(apartmentID int64) *apartmentRanges {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.apartments[apartmentID]
}

func (x *Index) getOrCreate(apartmentID int64) *apartmentRanges {
	if a := x.get(apartmentID); a != nil {
		return a
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	a, ok := x.apartments[apartmentID]
	if !ok {
		a = &apartmentRanges{}
		x.apartments[apartmentID] = a
	}
	return a
}

// Query reports whether r overlaps no committed range of the apartment.
func (x *Index) Query(apartmentID int64, r domain.DateRange) bool {
	a := x.get(apartmentID)
	if a == nil {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	// Entries starting at or after r.CheckOut cannot overlap.
	end := sort.Search(len(a.entries), func(i int) bool {
		return !a.entries[i].Range.CheckIn.Before(r.CheckOut)
	})
	for i := end - 1; i >= 0; i-- {
		e := a.entries[i].Range
		if e.Overlaps(r) {
			return false
		}
		if !a.overlapping && !e.CheckOut.After(r.CheckIn) {
			break
		}
	}
	return true
}

// Insert adds r under bookingID. The caller must hold the apartment's exclusivity
// and must have checked Query first; no overlap check happens here.
func (x *Index) Insert(apartmentID int64, r domain.DateRange, bookingID string) {
	a := x.getOrCreate(apartmentID)
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = removeEntry(a.entries, bookingID)
	pos := sort.Search(len(a.entries), func(i int) bool {
		return a.entries[i].Range.CheckIn.After(r.CheckIn)
	})
	a.entries = append(a.entries, Entry{})
	copy(a.entries[pos+1:], a.entries[pos:])
	a.entries[pos] = Entry{BookingID: bookingID, Range: r}
}

// Remove drops the range inserted under bookingID. Removing an absent booking is a no-op.
func (x *Index) Remove(apartmentID int64, bookingID string) bool {
	a := x.get(apartmentID)
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	before := len(a.entries)
	a.entries = removeEntry(a.entries, bookingID)
	return len(a.entries) != before
}

// Load replaces the apartment's ranges with entries and marks it loaded.
func (x *Index) Load(apartmentID int64, entries []Entry) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Range.CheckIn.Before(sorted[j].Range.CheckIn)
	})

	overlapping := false
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Range.Overlaps(sorted[i].Range) {
			overlapping = true
			break
		}
	}

	a := x.getOrCreate(apartmentID)
	a.mu.Lock()
	a.entries = sorted
	a.loaded = true
	a.overlapping = overlapping
	a.mu.Unlock()
}

func (x *Index) Loaded(apartmentID int64) bool {
	a := x.get(apartmentID)
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// Invalidate marks the apartment for reconciliation with the store on next use.
func (x *Index) Invalidate(apartmentID int64) {
	if a := x.get(apartmentID); a != nil {
		a.mu.Lock()
		a.loaded = false
		a.mu.Unlock()
	}
}

// Ranges returns a snapshot of the apartment's entries ordered by check-in.
func (x *Index) Ranges(apartmentID int64) []Entry {
	a := x.get(apartmentID)
	if a == nil {
		return []Entry{}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

func removeEntry(entries []Entry, bookingID string) []Entry {
	for i, e := range entries {
		if e.BookingID == bookingID {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}
