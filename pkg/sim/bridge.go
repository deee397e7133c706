package sim

import (
	"errors"

	"github.com/opencircuitlab/circuitscope/pkg/part"
)

// ErrAmbiguousTitle reports that two parts in the counterpart view share a
// title, so indicators could not be mirrored unambiguously.
var ErrAmbiguousTitle = errors.New("sim: duplicate part title in counterpart view")

// ViewBridge resolves a part in the simulated view to its twin in the
// counterpart view. Titles are matched exactly, case-sensitively; the editor
// keeps them in sync between views.
type ViewBridge struct {
	byTitle map[string]*part.Part
}

// NewViewBridge indexes the counterpart view's parts by title. A duplicate
// title makes every lookup ambiguous, so construction fails outright.
func NewViewBridge(counterparts []*part.Part) (*ViewBridge, error) {
	byTitle := make(map[string]*part.Part, len(counterparts))
	for _, p := range counterparts {
		if _, dup := byTitle[p.Title]; dup {
			return nil, ErrAmbiguousTitle
		}
		byTitle[p.Title] = p
	}
	return &ViewBridge{byTitle: byTitle}, nil
}

// Mirror returns the counterpart of p, or (nil, false) when the other view
// has no part with that title.
func (b *ViewBridge) Mirror(p *part.Part) (*part.Part, bool) {
	if b == nil {
		return nil, false
	}
	twin, ok := b.byTitle[p.Title]
	return twin, ok
}
