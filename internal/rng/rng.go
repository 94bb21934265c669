// Package rng provides the seedable random source used by every stochastic
// component of the simulator. A Source implements golang.org/x/exp/rand.Source
// so it can back gonum's distuv distributions directly.
package rng

import (
	"encoding/binary"
	"math"
	"math/bits"

	"golang.org/x/crypto/blake2b"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source is a xoshiro256++ generator seeded through a splitmix64 scrambler.
// It is not safe for concurrent use; the simulator allocates one per task.
type Source struct {
	s [4]uint64
}

func New(seed uint64) *Source {
	src := &Source{}
	src.Seed(seed)
	return src
}

// MixSeed derives a task seed from the global seed, a chromosome identifier
// and a cell id. Identical inputs produce identical seeds on every platform.
func MixSeed(seed uint64, chrom string, cellID uint64) uint64 {
	h, _ := blake2b.New256(nil)
	var buff [8]byte
	binary.LittleEndian.PutUint64(buff[:], seed)
	h.Write(buff[:])
	h.Write([]byte(chrom))
	binary.LittleEndian.PutUint64(buff[:], cellID)
	h.Write(buff[:])
	return binary.LittleEndian.Uint64(h.Sum(nil)[:8])
}

func splitmix64(x *uint64) uint64 {
	*x += 0x9e3779b97f4a7c15
	z := *x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (src *Source) Seed(seed uint64) {
	for i := range src.s {
		src.s[i] = splitmix64(&seed)
	}
}

func rotl(x uint64, k uint) uint64 { return (x << k) | (x >> (64 - k)) }

func (src *Source) Uint64() uint64 {
	s := &src.s
	result := rotl(s[0]+s[3], 23) + s[0]
	t := s[1] << 17
	s[2] ^= s[0]
	s[3] ^= s[1]
	s[1] ^= s[2]
	s[0] ^= s[3]
	s[2] ^= t
	s[3] = rotl(s[3], 45)
	return result
}

// Float64 returns a uniform draw from [0, 1).
func (src *Source) Float64() float64 {
	return float64(src.Uint64()>>11) / (1 << 53)
}

// Uint64n returns a uniform draw from [0, n). n must be > 0.
func (src *Source) Uint64n(n uint64) uint64 {
	// Lemire's nearly-divisionless bounded generation.
	hi, lo := bits.Mul64(src.Uint64(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(src.Uint64(), n)
		}
	}
	return hi
}

// UniformRange returns a uniform draw from [lo, hi). hi must be > lo.
func (src *Source) UniformRange(lo, hi uint64) uint64 {
	return lo + src.Uint64n(hi-lo)
}

// Normal draws from a normal distribution with the given mean and stddev.
func (src *Source) Normal(mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: src}.Rand()
}

// Bernoulli returns true with probability p.
func (src *Source) Bernoulli(p float64) bool {
	return distuv.Bernoulli{P: p, Src: src}.Rand() == 1
}

// Gev draws from a generalized extreme-value distribution via the quantile
// transform. A zero shape parameter reduces to the Gumbel case.
func (src *Source) Gev(mu, sigma, xi float64) float64 {
	u := src.Float64()
	for u == 0 {
		u = src.Float64()
	}
	if xi == 0 {
		return mu - sigma*math.Log(-math.Log(u))
	}
	return mu + sigma*(math.Pow(-math.Log(u), -xi)-1)/xi
}

// Discrete returns an index drawn proportionally to the given non-negative
// weights. Indices with zero weight are never returned unless every weight
// is zero, in which case the draw is uniform.
func (src *Source) Discrete(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return int(src.Uint64n(uint64(len(weights))))
	}
	pick := src.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if pick < acc {
			return i
		}
	}
	return len(weights) - 1
}
