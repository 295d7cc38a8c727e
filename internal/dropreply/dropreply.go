// Package dropreply builds the canned reply sent when the filter stage drops
// a message instead of forwarding it for generation.
package dropreply

import (
	"math/rand/v2"
	"strings"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/events"
)

// DefaultReply is used when no candidate exists.
const DefaultReply = "확인했습니다."

// Intent classifies why a message was dropped.
type Intent string

const (
	IntentThank           Intent = "THANK"
	IntentApology         Intent = "APOLOGY"
	IntentGoodbye         Intent = "GOODBYE"
	IntentGreeting        Intent = "GREETING"
	IntentCallOnly        Intent = "CALL_ONLY"
	IntentReactionOnly    Intent = "REACTION_ONLY"
	IntentNoMeaning       Intent = "NO_MEANING"
	IntentConnectorFiller Intent = "CONNECTOR_FILLER"
	IntentUnknown         Intent = "UNKNOWN"
)

var reasonIntents = map[string]Intent{
	"thank":            IntentThank,
	"apology":          IntentApology,
	"goodbye":          IntentGoodbye,
	"greeting":         IntentGreeting,
	"call_only":        IntentCallOnly,
	"reaction_only":    IntentReactionOnly,
	"no_meaning":       IntentNoMeaning,
	"connector_filler": IntentConnectorFiller,
}

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// Synthesizer selects canned replies.
type Synthesizer struct {
	picker Picker
}

// New returns a Synthesizer. A nil picker selects uniformly at random.
func New(picker Picker) *Synthesizer {
	if picker == nil {
		picker = globalPicker{}
	}
	return &Synthesizer{picker: picker}
}

// IntentOf maps a filter result's reason type to an Intent.
func IntentOf(fr *events.FilterResult) Intent {
	if fr == nil {
		return IntentUnknown
	}
	if intent, ok := reasonIntents[strings.ToLower(fr.ReasonType())]; ok {
		return intent
	}
	return IntentUnknown
}

// Candidates returns the replies available for intent and tone. Unknown tones
// use the polite set.
func Candidates(intent Intent, tone domain.Tone) []string {
	byTone, ok := catalog[intent]
	if !ok {
		byTone = catalog[IntentUnknown]
	}
	if c, ok := byTone[tone]; ok {
		return c
	}
	return byTone[domain.TonePolite]
}

// BuildText returns a reply for fr in the given tone. It never returns "".
func (s *Synthesizer) BuildText(fr *events.FilterResult, tone domain.Tone) string {
	candidates := Candidates(IntentOf(fr), tone)
	if len(candidates) == 0 {
		return DefaultReply
	}
	return candidates[s.picker.IntN(len(candidates))]
}
