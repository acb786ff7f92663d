package model

import "time"

// SignalState marks whether an external signal was actually obtained.
// Unknown signals are excluded from the confidence-weighted rollup rather
// than counted as zero.
type SignalState string

const (
	SignalKnown   SignalState = "known"
	SignalUnknown SignalState = "unknown"
)

// KnowledgeBaseSignal reports entity presence in knowledge bases.
type KnowledgeBaseSignal struct {
	State   SignalState `json:"state"`
	Present bool        `json:"present"`
	Source  string      `json:"source,omitempty"`
}

// ReputationSignal tallies review/mention sentiment for the entity.
type ReputationSignal struct {
	State    SignalState `json:"state"`
	Positive int         `json:"positive"`
	Negative int         `json:"negative"`
	Neutral  int         `json:"neutral"`
}

// CoOccurrenceSignal lists entities the audited entity co-occurs with in
// news/reference sources.
type CoOccurrenceSignal struct {
	State    SignalState `json:"state"`
	Entities []string    `json:"entities,omitempty"`
}

// EntityAuthorityRecord aggregates external authority signals for one
// (entity, domain) pair. Cached with a TTL independent of document scoring.
type EntityAuthorityRecord struct {
	Entity        string              `json:"entity"`
	Domain        string              `json:"domain"`
	KnowledgeBase KnowledgeBaseSignal `json:"knowledge_base"`
	Reputation    ReputationSignal    `json:"reputation"`
	CoOccurrence  CoOccurrenceSignal  `json:"co_occurrence"`
	Confidence    float64             `json:"confidence"` // fraction of sources that answered
	FetchedAt     time.Time           `json:"fetched_at"`
}

// KnownSources counts how many of the three signals were obtained.
func (r *EntityAuthorityRecord) KnownSources() int {
	n := 0
	if r.KnowledgeBase.State == SignalKnown {
		n++
	}
	if r.Reputation.State == SignalKnown {
		n++
	}
	if r.CoOccurrence.State == SignalKnown {
		n++
	}
	return n
}
