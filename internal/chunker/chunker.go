package chunker

import "github.com/ximaera/fb2lingo/internal/fb2"

// Batch is a run of consecutive text units translated in one request.
type Batch struct {
	// Index is the dispatch position of the batch, starting at 0.
	Index int
	Units []*fb2.Paragraph
}

// Texts returns the source text of each unit in order.
func (b Batch) Texts() []string {
	texts := make([]string, len(b.Units))
	for i, u := range b.Units {
		texts[i] = u.Text
	}
	return texts
}

// Split cuts units into batches of size, in order. Only the last batch may
// be shorter. A non-positive size yields no batches.
func Split(units []*fb2.Paragraph, size int) []Batch {
	if size <= 0 {
		return nil
	}
	var batches []Batch
	n := len(units)

	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		batches = append(batches, Batch{
			Index: len(batches),
			Units: units[i:end],
		})
	}

	return batches
}
