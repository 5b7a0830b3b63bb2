package collector

import (
	"xscraper/pkg/history"
	"xscraper/pkg/models"
)

// Dedup is the single gate between the collectors and the persistent
// history. Both collection paths consult and append through it; nothing else
// writes the history.
type Dedup struct {
	history *history.Store
}

// NewDedup wraps the history store in a dedup filter.
func NewDedup(h *history.Store) *Dedup {
	return &Dedup{history: h}
}

// Known reports whether the id was collected in this or any previous run.
func (d *Dedup) Known(id string) bool {
	return d.history.IsKnown(id)
}

// Admit records the id as collected. It returns false when the record was
// already known, in which case the caller must not emit it.
func (d *Dedup) Admit(rec models.Record) bool {
	if d.history.IsKnown(rec.ID) {
		return false
	}
	d.history.Add(rec.ID)
	return true
}

// Size returns the number of known ids.
func (d *Dedup) Size() int {
	return d.history.Size()
}

// Persist saves the history. Safe to call repeatedly; used at checkpoints
// and at run end.
func (d *Dedup) Persist() error {
	return d.history.Save()
}
