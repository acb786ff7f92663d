package corpus

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// minhashSignature computes an m-element MinHash signature over the
// document's shingle hashes. Each position uses a seeded mix of the
// shingle hash, so the signature approximates the Jaccard similarity of
// the underlying sets without pairwise full comparison.
func minhashSignature(sd *shingledDoc, m int) []uint64 {
	sig := make([]uint64, m)
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	if len(sd.set) == 0 {
		return sig
	}
	for h := range sd.set {
		for i := 0; i < m; i++ {
			v := mix64(h ^ seeds[i%len(seeds)]*uint64(i+1))
			if v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// seeds feeds the per-position permutations. Fixed: signatures must be
// stable across runs and processes.
var seeds = [...]uint64{
	0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9, 0x94d049bb133111eb,
	0xd6e8feb86659fd93, 0xa5a5a5a5a5a5a5a5, 0xc3a5c85c97cb3127,
	0xb492b66fbe98f273, 0x9ae16a3b2f90404f,
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// bandKeys buckets a signature into LSH band keys. Two documents sharing
// any band key become a candidate pair; only candidates get the exact
// Jaccard comparison.
func bandKeys(sig []uint64, bands int) []uint64 {
	if bands <= 0 || len(sig) == 0 {
		return nil
	}
	rows := len(sig) / bands
	if rows == 0 {
		rows = 1
	}
	keys := make([]uint64, 0, bands)
	buf := make([]byte, 8)
	for b := 0; b < bands; b++ {
		start := b * rows
		if start >= len(sig) {
			break
		}
		end := start + rows
		if end > len(sig) {
			end = len(sig)
		}
		h := fnv.New64a()
		binary.LittleEndian.PutUint64(buf, uint64(b))
		h.Write(buf)
		for _, v := range sig[start:end] {
			binary.LittleEndian.PutUint64(buf, v)
			h.Write(buf)
		}
		keys = append(keys, h.Sum64())
	}
	return keys
}
