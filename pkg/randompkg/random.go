// Package randompkg generates random ledger fixtures for tests and seeding.
//
// There is no process-wide state: every generator hangs off a Source that the
// caller creates and passes around, so a failing test can be replayed from its seed.
package randompkg

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Source is a seeded random generator safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	seed int64
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{
		rnd:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Intn returns a random integer in [0, n).
func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rnd.Intn(n)
}

// IntBetween returns a random integer in [min, max].
func (s *Source) IntBetween(min, max int) int {
	return min + s.Intn(max-min+1)
}

// String generates a random lowercase string of length n.
func (s *Source) String(n int) string {
	var sb strings.Builder

	k := len(alphabet)

	for i := 0; i < n; i++ {
		_ = sb.WriteByte(alphabet[s.Intn(k)]) // The returned err is always nil.
	}

	return sb.String()
}

// Label generates a random wallet label.
func (s *Source) Label() string {
	return fmt.Sprintf("wallet-%s", s.String(8))
}

// TxID generates a random UUID-formatted txid.
func (s *Source) TxID() string {
	var b [16]byte

	s.mu.Lock()
	_, _ = s.rnd.Read(b[:]) // math/rand Read never fails.
	s.mu.Unlock()

	id, _ := uuid.FromBytes(b[:]) // 16 bytes is always a valid length.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80

	return id.String()
}

// AmountBetween generates a random amount in [min, max] with 4 fractional digits.
func (s *Source) AmountBetween(min, max int64) decimal.Decimal {
	const scale = 10_000

	span := (max - min) * scale

	s.mu.Lock()
	n := s.rnd.Int63n(span + 1)
	s.mu.Unlock()

	return decimal.New(min*scale+n, -4)
}
