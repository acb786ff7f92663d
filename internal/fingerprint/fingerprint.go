// Package fingerprint implements the change detector: a stable content
// hash per document that decides whether downstream re-scoring is needed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/normalize"
)

// Compute returns the hex-encoded SHA-256 fingerprint of a document,
// covering the normalized body text plus the structural signature:
// heading tree shape and the sorted internal/external link target set.
// Title and metadata changes alter the hash; paragraph reflow that
// preserves text does not.
func Compute(doc *model.Document) string {
	h := sha256.New()

	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(normalize.Fold(doc.Title))
	for _, p := range doc.Paragraphs {
		write(normalize.Fold(p.Text))
	}

	// Structural signature: heading levels and texts in document order.
	for _, hd := range doc.Headings {
		write(strconv.Itoa(hd.Level))
		write(normalize.Fold(hd.Text))
	}

	// Link set is order-independent.
	targets := make([]string, 0, len(doc.Links))
	for _, l := range doc.Links {
		targets = append(targets, normalize.Fold(l.AnchorText)+"\x1f"+l.TargetURL)
	}
	sort.Strings(targets)
	for _, t := range targets {
		write(t)
	}

	for _, img := range doc.Images {
		write(img.Filename)
		write(normalize.Fold(img.AltText))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ShouldRecompute reports whether the document changed since previousHash
// was recorded. An empty previous hash always forces recomputation.
func ShouldRecompute(doc *model.Document, previousHash string) bool {
	if previousHash == "" {
		return true
	}
	return Compute(doc) != previousHash
}
