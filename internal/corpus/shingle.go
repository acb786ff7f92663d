package corpus

import (
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/sells-group/audit-engine/internal/normalize"
)

// tokenSpan is one word token with its character range in the body text.
type tokenSpan struct {
	text  string
	start int
	end   int
}

// shingleRef is one token n-gram hash with the character range it covers.
type shingleRef struct {
	hash  uint64
	start int
	end   int
}

// shingledDoc is a document reduced to its shingle set, keeping enough
// positional information to align matches back to character ranges.
type shingledDoc struct {
	docID    string
	refs     []shingleRef            // document order
	set      map[uint64]struct{}     // distinct shingle hashes
	firstRef map[uint64]shingleRef   // first occurrence per hash
}

// tokenize splits body into folded word tokens with character offsets
// into the original string.
func tokenize(body string) []tokenSpan {
	var tokens []tokenSpan
	start := -1
	for i, r := range body {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, tokenSpan{
				text:  normalize.Fold(body[start:i]),
				start: start,
				end:   i,
			})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, tokenSpan{
			text:  normalize.Fold(body[start:]),
			start: start,
			end:   len(body),
		})
	}
	return tokens
}

// shingle reduces a document body to hashed token n-grams of size k.
func shingle(docID, body string, k int) *shingledDoc {
	tokens := tokenize(body)
	sd := &shingledDoc{
		docID:    docID,
		set:      make(map[uint64]struct{}),
		firstRef: make(map[uint64]shingleRef),
	}
	if len(tokens) < k {
		return sd
	}
	for i := 0; i+k <= len(tokens); i++ {
		h := fnv.New64a()
		parts := make([]string, k)
		for j := 0; j < k; j++ {
			parts[j] = tokens[i+j].text
		}
		h.Write([]byte(strings.Join(parts, " ")))
		ref := shingleRef{
			hash:  h.Sum64(),
			start: tokens[i].start,
			end:   tokens[i+k-1].end,
		}
		sd.refs = append(sd.refs, ref)
		sd.set[ref.hash] = struct{}{}
		if _, seen := sd.firstRef[ref.hash]; !seen {
			sd.firstRef[ref.hash] = ref
		}
	}
	return sd
}

// jaccard computes exact Jaccard similarity of two shingle sets.
func jaccard(a, b *shingledDoc) float64 {
	if len(a.set) == 0 || len(b.set) == 0 {
		return 0
	}
	small, large := a.set, b.set
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for h := range small {
		if _, ok := large[h]; ok {
			inter++
		}
	}
	union := len(a.set) + len(b.set) - inter
	return float64(inter) / float64(union)
}
