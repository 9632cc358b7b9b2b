package score

import (
	"cmp"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrNoName is returned by Add when the partial score name is empty.
var ErrNoName = errors.New("score name required")

// Score is a composite score made up of multiple named partial scores.
// Any number of goroutines may call Add concurrently without external
// locking: the per-name counter and the running total are each updated
// atomically. The two updates are independent, so a reader racing a writer
// can briefly see a part without its total (or the reverse). Readers that
// need a settled view wait for contributors to finish, which is what the
// ranking step does.
type Score struct {
	total atomic.Int64
	parts sync.Map // name -> *atomic.Int64
}

// New returns an empty score: zero total, no parts.
func New() *Score {
	return &Score{}
}

// Add increments the partial score under name by value, creating the slot
// on first use. When two goroutines race to create the same slot, one
// creation wins and both values land on the surviving counter.
func (s *Score) Add(name string, value int64) error {
	if name == "" {
		return ErrNoName
	}

	v, ok := s.parts.Load(name)
	if !ok {
		v, _ = s.parts.LoadOrStore(name, new(atomic.Int64))
	}

	v.(*atomic.Int64).Add(value)
	s.total.Add(value)

	return nil
}

// Merge adds every partial score currently visible in other to s and
// returns s for chaining. Each entry is read at its own point in time, so
// a merge racing writes to other folds in at least the values present when
// iteration reached them. Merging the same source twice adds its parts
// twice. other is only read, never changed.
func (s *Score) Merge(other *Score) *Score {
	if other == nil {
		return s
	}

	other.parts.Range(func(k, v any) bool {
		// names already in a score are never empty, Add cannot fail here
		_ = s.Add(k.(string), v.(*atomic.Int64).Load())
		return true
	})

	return s
}

// Total returns the running sum of all partial score values.
func (s *Score) Total() int64 {
	return s.total.Load()
}

// Contains reports whether a partial score with the given name was ever
// added, even if later additions brought its value back to zero.
func (s *Score) Contains(name string) bool {
	_, ok := s.parts.Load(name)
	return ok
}

// Value returns the value of the named partial score, or 0 when no such
// partial score was ever added.
func (s *Score) Value(name string) int64 {
	if v, ok := s.parts.Load(name); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Names returns a snapshot of the known partial score names. The returned
// slice is a copy, holding or mutating it has no effect on the score.
func (s *Score) Names() []string {
	names := make([]string, 0)
	s.parts.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}

// Parts returns a point-in-time copy of the full score breakdown.
func (s *Score) Parts() map[string]int64 {
	parts := make(map[string]int64)
	s.parts.Range(func(k, v any) bool {
		parts[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return parts
}

// Compare orders scores by total, ascending. Equal totals compare equal
// regardless of their parts, callers needing a strict order apply their
// own tie-break.
func (s *Score) Compare(other *Score) int {
	return cmp.Compare(s.Total(), other.Total())
}
