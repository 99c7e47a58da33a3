package session

import "fmt"

// Progress counts completed scan results against the expected total.
type Progress struct {
	done  int
	total int
}

// NewProgress creates a Progress for total items.
func NewProgress(total int) *Progress {
	return &Progress{total: total}
}

// Advance marks one more item done and returns the new count.
func (p *Progress) Advance() int {
	if p.done < p.total {
		p.done++
	}

	return p.done
}

// Done returns the number of completed items.
func (p *Progress) Done() int {
	return p.done
}

// Total returns the expected number of items.
func (p *Progress) Total() int {
	return p.total
}

// Finished reports whether every item completed.
func (p *Progress) Finished() bool {
	return p.done >= p.total
}

// String renders the counter as "[done/total]".
func (p *Progress) String() string {
	return fmt.Sprintf("[%d/%d]", p.done, p.total)
}
