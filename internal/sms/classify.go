package sms

import "strings"

// Keyword classes for inbound message bodies, per the A2P 10DLC keyword
// contract. Classification is over the trimmed, uppercased body and the
// keyword must be the entire message ("STOP PLEASE" is a generic message,
// not an opt-out, matching carrier behavior).
type KeywordClass int

const (
	ClassDefault KeywordClass = iota
	ClassStop
	ClassStart
	ClassHelp
)

var stopKeywords = map[string]struct{}{
	"STOP": {}, "STOPALL": {}, "UNSUBSCRIBE": {}, "CANCEL": {}, "END": {}, "QUIT": {},
}

var startKeywords = map[string]struct{}{
	"START": {}, "YES": {}, "UNSTOP": {}, "CONFIRM": {},
}

var helpKeywords = map[string]struct{}{
	"HELP": {}, "INFO": {},
}

// Classify normalizes body and returns its keyword class along with the
// normalized form (used for consent audit rows).
func Classify(body string) (KeywordClass, string) {
	norm := strings.ToUpper(strings.TrimSpace(body))
	if _, ok := stopKeywords[norm]; ok {
		return ClassStop, norm
	}
	if _, ok := startKeywords[norm]; ok {
		return ClassStart, norm
	}
	if _, ok := helpKeywords[norm]; ok {
		return ClassHelp, norm
	}
	return ClassDefault, norm
}
