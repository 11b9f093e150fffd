package zrtp

import (
	"crypto/rand"
	"crypto/sha512"
	"sync"
)

// entropyAccumulator is a hash-context RNG: it continuously absorbs
// caller-supplied entropy (host-provided randomness, timing jitter,
// whatever the embedder has on hand) and produces output by
// extract-then-rekey, so a single weak entropy source early in process
// lifetime cannot permanently determine all future output (spec §3,
// "entropy accumulator ... producing RNG output by extraction +
// rekey").
type entropyAccumulator struct {
	mu      sync.Mutex
	state   [64]byte // sha512 output size
	counter uint64
}

// newEntropyAccumulator seeds the accumulator from the OS CSPRNG.
func newEntropyAccumulator() *entropyAccumulator {
	e := &entropyAccumulator{}
	seed := make([]byte, 64)
	if _, err := rand.Read(seed); err != nil {
		panic("zrtp: failed to read OS entropy: " + err.Error())
	}
	copy(e.state[:], seed)
	return e
}

// Absorb mixes additional caller-supplied entropy into the state.
func (e *entropyAccumulator) Absorb(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := sha512.New()
	h.Write(e.state[:])
	h.Write(data)
	copy(e.state[:], h.Sum(nil))
}

// Extract produces n bytes of output, then rekeys the internal state so
// the emitted bytes cannot be used to predict future output
// (forward secrecy of the RNG stream itself).
func (e *entropyAccumulator) Extract(n int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]byte, 0, n)
	for len(out) < n {
		e.counter++
		h := sha512.New()
		h.Write(e.state[:])
		h.Write([]byte("extract"))
		var ctr [8]byte
		for i := 0; i < 8; i++ {
			ctr[i] = byte(e.counter >> (8 * (7 - i)))
		}
		h.Write(ctr[:])
		block := h.Sum(nil)
		out = append(out, block...)
	}
	out = out[:n]

	rekey := sha512.New()
	rekey.Write(e.state[:])
	rekey.Write(out)
	copy(e.state[:], rekey.Sum(nil))

	return out
}
