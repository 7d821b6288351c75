// Package reassembler writes translations back into an FB2 document.
package reassembler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ximaera/fb2lingo/internal/fb2"
	"github.com/ximaera/fb2lingo/internal/logger"
)

// Placement decides where a translation goes relative to its original.
type Placement string

const (
	// PlacementReplace swaps the original paragraph for its translation.
	PlacementReplace Placement = "replace"
	// PlacementOriginalFirst keeps the original and adds the translation after it.
	PlacementOriginalFirst Placement = "original-first"
	// PlacementFootnote swaps in the translation and moves the original to a note.
	PlacementFootnote Placement = "footnote"
)

// ParsePlacement validates a placement name. Empty means replace.
func ParsePlacement(s string) (Placement, error) {
	switch p := Placement(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlacementReplace, nil
	case PlacementReplace, PlacementOriginalFirst, PlacementFootnote:
		return p, nil
	default:
		return "", fmt.Errorf("unknown placement %q (want replace, original-first or footnote)", s)
	}
}

// NoteID is the id of the note section holding the original of unit index.
func NoteID(index int) string {
	return fmt.Sprintf("fb2lingo-n%d", index)
}

// Reassembler mutates a document for one placement mode.
type Reassembler struct {
	doc       *fb2.Document
	placement Placement
	mu        sync.Mutex
	// taken holds the ids already in the book plus the ones handed out,
	// loaded on the first footnote.
	taken map[string]bool
}

// New returns a Reassembler writing into doc.
func New(doc *fb2.Document, placement Placement) *Reassembler {
	if placement == "" {
		placement = PlacementReplace
	}
	return &Reassembler{doc: doc, placement: placement}
}

// Apply pairs units with translations by position and places each pair.
// Extra translations are dropped. Unit i receives global index
// firstIndex+i, which footnote mode uses for its reference label.
// It returns the number of units placed.
func (r *Reassembler) Apply(units []*fb2.Paragraph, translations []string, firstIndex int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(units)
	if len(translations) < n {
		n = len(translations)
	}
	if extra := len(translations) - len(units); extra > 0 {
		logger.Warn("Dropping surplus translations", "surplus", extra, "first_index", firstIndex)
	}

	placed := 0
	for i := 0; i < n; i++ {
		if err := r.place(units[i], translations[i], firstIndex+i); err != nil {
			logger.Error("Failed to place translation", "seq", units[i].Seq, "error", err)
			continue
		}
		placed++
	}
	return placed
}

func (r *Reassembler) place(unit *fb2.Paragraph, translation string, index int) error {
	el := r.doc.NewParagraph(unit, translation)
	switch r.placement {
	case PlacementOriginalFirst:
		return r.doc.InsertAfter(unit, el)
	case PlacementFootnote:
		id := r.noteID(index)
		r.doc.AppendNoteRef(el, id, fmt.Sprintf("[%d]", index))
		if err := r.doc.Replace(unit, el); err != nil {
			return err
		}
		r.doc.AppendNote(id, fmt.Sprintf("%d", index), unit.Text)
		return nil
	default:
		return r.doc.Replace(unit, el)
	}
}

// noteID returns NoteID(index), or a suffixed variant when the book
// already uses that id, e.g. from an earlier footnote run.
func (r *Reassembler) noteID(index int) string {
	if r.taken == nil {
		r.taken = r.doc.IDs()
	}
	id := NoteID(index)
	for k := 2; r.taken[id]; k++ {
		id = fmt.Sprintf("%s-%d", NoteID(index), k)
	}
	r.taken[id] = true
	return id
}
