package delta

import "github.com/kasuganosora/catalogd/internal/catalog"

// Sink is the opaque northbound publication capability (§6): an injected,
// function-typed field rather than an interface with a single method,
// matching the "polymorphic capability" design note in spec.md §9 ("avoid
// any host-runtime coupling").
type Sink func(topicKey string, version uint64, payload []byte, deleted bool) bool

// Sinks groups the up-to-two topic namespaces a Delta Builder run can
// publish to, selected by catalog.Config.TopicMode (§6).
type Sinks struct {
	Full    Sink // nil unless TopicMode is FULL or MIXED
	Minimal Sink // nil unless TopicMode is MINIMAL or MIXED
}

// SinksForMode derives the Sinks a Builder should actually publish to from
// mode, gating full/minimal exactly as each Sink field's doc comment
// promises. full and minimal may be nil; a nil sink for a mode that would
// otherwise select it is left nil (there is nothing to publish to).
func SinksForMode(mode catalog.TopicMode, full, minimal Sink) Sinks {
	var s Sinks
	switch mode {
	case catalog.TopicFull:
		s.Full = full
	case catalog.TopicMin:
		s.Minimal = minimal
	case catalog.TopicMixed:
		s.Full = full
		s.Minimal = minimal
	}
	return s
}
