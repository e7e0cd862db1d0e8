// Package dedup detects duplicate articles and incidents through a cascade
// of URL, title, content, and entity matching strategies.
package dedup

import (
	"time"

	"github.com/incidentwire/incidentwire/pkg/textmatch"
)

// Match types, in cascade order.
const (
	MatchURL     = "url"
	MatchTitle   = "title"
	MatchContent = "content"
	MatchEntity  = "entity"
)

// Default thresholds.
const (
	DefaultTitleThreshold   = 0.75
	DefaultContentThreshold = 0.85
	dateWindowDays          = 30
)

// Candidate is one article offered to in-batch duplicate detection.
type Candidate struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Entities Entities

	sketch     []uint32
	hasSketch  bool
	titleToken []string
	hasTitle   bool
}

// Entities are the extracted fields used by the entity strategy.
type Entities struct {
	OffenderName string
	VictimName   string
	IncidentType string
	State        string
	City         string
	Date         *time.Time
}

// Result describes a duplicate decision.
type Result struct {
	IsDuplicate bool
	MatchType   string
	Confidence  float64
	MatchedID   string
	Reasons     []string
}

// Detector evaluates the duplicate cascade.
type Detector struct {
	TitleThreshold   float64
	ContentThreshold float64
}

// NewDetector creates a detector with default thresholds.
func NewDetector() *Detector {
	return &Detector{
		TitleThreshold:   DefaultTitleThreshold,
		ContentThreshold: DefaultContentThreshold,
	}
}

// Compare evaluates one candidate pair through the four strategies in
// order. The first matching strategy wins.
func (d *Detector) Compare(a, b *Candidate) Result {
	if a.URL != "" && a.URL == b.URL {
		return Result{IsDuplicate: true, MatchType: MatchURL, Confidence: 1.0, MatchedID: b.ID}
	}

	if sim := textmatch.TokenJaccard(a.titleTokens(), b.titleTokens()); sim >= d.TitleThreshold {
		return Result{IsDuplicate: true, MatchType: MatchTitle, Confidence: sim, MatchedID: b.ID}
	}

	if sim := textmatch.SketchSimilarity(a.contentSketch(), b.contentSketch()); sim >= d.ContentThreshold {
		return Result{IsDuplicate: true, MatchType: MatchContent, Confidence: sim, MatchedID: b.ID}
	}

	if ok, conf, reasons := MatchEntities(a.Entities, b.Entities); ok {
		return Result{IsDuplicate: true, MatchType: MatchEntity, Confidence: conf, MatchedID: b.ID, Reasons: reasons}
	}

	return Result{}
}

// FindInBatch returns, for each candidate, the first earlier candidate it
// duplicates, keyed by candidate ID.
func (d *Detector) FindInBatch(batch []*Candidate) map[string]Result {
	out := map[string]Result{}
	for i := 1; i < len(batch); i++ {
		for j := 0; j < i; j++ {
			// Skip candidates already marked duplicate so chains collapse
			// onto the earliest original.
			if _, dup := out[batch[j].ID]; dup {
				continue
			}
			if res := d.Compare(batch[i], batch[j]); res.IsDuplicate {
				out[batch[i].ID] = res
				break
			}
		}
	}
	return out
}

func (c *Candidate) titleTokens() []string {
	if !c.hasTitle {
		c.titleToken = textmatch.TitleTokens(c.Title)
		c.hasTitle = true
	}
	return c.titleToken
}

func (c *Candidate) contentSketch() []uint32 {
	if !c.hasSketch {
		c.sketch = textmatch.MinHashSketch(c.Content)
		c.hasSketch = true
	}
	return c.sketch
}
