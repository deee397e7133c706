package sim

import (
	"errors"
	"testing"

	"github.com/opencircuitlab/circuitscope/pkg/part"
)

func TestViewBridgeResolvesByExactTitle(t *testing.T) {
	twin := &part.Part{Title: "R1"}
	bridge, err := NewViewBridge([]*part.Part{twin, {Title: "r1"}, {Title: "LED1"}})
	if err != nil {
		t.Fatalf("NewViewBridge: %v", err)
	}

	got, ok := bridge.Mirror(&part.Part{Title: "R1"})
	if !ok || got != twin {
		t.Errorf("Mirror(R1) = %v, %v; want the twin part", got, ok)
	}

	if _, ok := bridge.Mirror(&part.Part{Title: "C7"}); ok {
		t.Errorf("Mirror resolved a title absent from the counterpart view")
	}
}

func TestViewBridgeRejectsDuplicateTitles(t *testing.T) {
	_, err := NewViewBridge([]*part.Part{{Title: "R1"}, {Title: "R1"}})
	if !errors.Is(err, ErrAmbiguousTitle) {
		t.Fatalf("err = %v, want ErrAmbiguousTitle", err)
	}
}

func TestNilBridgeMirrorsNothing(t *testing.T) {
	var bridge *ViewBridge
	if _, ok := bridge.Mirror(&part.Part{Title: "R1"}); ok {
		t.Errorf("nil bridge resolved a mirror")
	}
}
