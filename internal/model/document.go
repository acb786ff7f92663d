package model

import "strings"

// Document is the normalized representation of one page, produced by the
// external ingestion pipeline. Immutable once hashed: any text change
// produces a new Document version, never an in-place mutation.
type Document struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	CentralEntity  string            `json:"central_entity,omitempty"`
	Domain         string            `json:"domain,omitempty"`
	Headings       []Heading         `json:"headings,omitempty"`
	Paragraphs     []Paragraph       `json:"paragraphs,omitempty"`
	Blocks         []Block           `json:"blocks,omitempty"`
	Links          []Link            `json:"links,omitempty"`
	Images         []Image           `json:"images,omitempty"`
	StructuredData []StructuredBlock `json:"structured_data,omitempty"`
	ContentHash    string            `json:"content_hash,omitempty"`
}

// Heading is one node of the ordered heading tree.
type Heading struct {
	Level    int    `json:"level"` // 1..6
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Paragraph is one body-text segment with its character offset in the
// concatenated body.
type Paragraph struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// BlockKind distinguishes list and table blocks.
type BlockKind string

const (
	BlockList  BlockKind = "list"
	BlockTable BlockKind = "table"
)

// Block is a list or table extracted from the page body.
type Block struct {
	Kind  BlockKind `json:"kind"`
	Items []string  `json:"items"`
}

// Link is one outgoing link with its anchor text and immediate context.
type Link struct {
	AnchorText string `json:"anchor_text"`
	Context    string `json:"context,omitempty"`
	TargetURL  string `json:"target_url"`
	TargetID   string `json:"target_id,omitempty"` // resolved document id for internal links
	Internal   bool   `json:"internal"`
}

// Image is one image reference.
type Image struct {
	AltText  string `json:"alt_text"`
	Filename string `json:"filename"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// StructuredBlock is a parsed structured-data block (e.g. schema.org),
// already reduced to key/value form by the ingestion pipeline.
type StructuredBlock struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// BodyText returns the document body as a single string, paragraphs
// joined by newlines. Offsets in Paragraph refer to this concatenation.
func (d *Document) BodyText() string {
	var b strings.Builder
	for i, p := range d.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// InternalLinks returns only the document's internal links.
func (d *Document) InternalLinks() []Link {
	var out []Link
	for _, l := range d.Links {
		if l.Internal {
			out = append(out, l)
		}
	}
	return out
}

// WordCount counts whitespace-separated tokens across all paragraphs.
func (d *Document) WordCount() int {
	n := 0
	for _, p := range d.Paragraphs {
		n += len(strings.Fields(p.Text))
	}
	return n
}
