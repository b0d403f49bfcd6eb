package agent

import "strings"

// ReplyIntent is the interpretation of a client's answer to a yes/no offer.
type ReplyIntent int

const (
	ReplyAmbiguous ReplyIntent = iota
	ReplyYes
	ReplyNo
)

// The vocabulary is a closed set on purpose. Anything outside it is
// ambiguous and gets a clarification, never a guessed yes.
var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "yup": {}, "sure": {},
	"ok": {}, "okay": {}, "sounds good": {}, "absolutely": {}, "definitely": {},
	"lets do it": {}, "im in": {}, "count me in": {}, "please": {},
	"yes please": {}, "do it": {}, "for sure": {}, "100": {}, "bet": {},
}

var negatives = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "nah": {}, "no thanks": {},
	"no thank you": {}, "not this time": {}, "pass": {}, "im good": {},
	"maybe next time": {}, "not today": {}, "skip": {},
}

// ParseReply normalizes a reply and matches it against the closed yes/no
// vocabulary.
func ParseReply(message string) ReplyIntent {
	normalized := normalizeReply(message)
	if _, ok := affirmatives[normalized]; ok {
		return ReplyYes
	}
	if _, ok := negatives[normalized]; ok {
		return ReplyNo
	}
	return ReplyAmbiguous
}

func normalizeReply(message string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(message)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
