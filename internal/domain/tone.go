package domain

import (
	"fmt"
	"strings"
)

// Tone is the reply style a user prefers.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	ToneFriendly Tone = "friendly"
	TonePolite   Tone = "polite"
	ToneCheerful Tone = "cheerful"
	ToneCalm     Tone = "calm"
	ToneCynical  Tone = "cynical"
)

// Tones lists every known tone in display order.
var Tones = []Tone{ToneNeutral, ToneFriendly, TonePolite, ToneCheerful, ToneCalm, ToneCynical}

// ParseTone maps a slug to a Tone. An empty value yields an empty Tone.
func ParseTone(value string) (Tone, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", nil
	}
	for _, t := range Tones {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown preferred tone: %q", value)
}

// Valid reports whether t is one of the known tones.
func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}
