package twilio

import (
	"github.com/twilio/twilio-go/twiml"
)

// Paths under the public callback base where the provider reaches this
// service. The gateway builds absolute URLs from these and the API router
// serves them.
const (
	// TwiMLConferencePath serves the conference join script; the conference
	// name is the trailing path segment.
	TwiMLConferencePath = "/twiml/conference"
	// TwiMLSilencePath serves an empty hold document so waiting participants
	// hear nothing.
	TwiMLSilencePath = "/twiml/silence"
	// StatusWebhookPath receives call lifecycle events.
	StatusWebhookPath = "/webhooks/call-status"
)

// ConferenceJoinTwiML renders the script that drops a leg into the named
// conference: no join beep, the room opens with the first arrival, one party
// leaving does not tear it down, and the hold document keeps waiting silent.
func ConferenceJoinTwiML(conference, waitURL string) (string, error) {
	conf := &twiml.VoiceConference{
		Name:                   conference,
		Beep:                   "false",
		StartConferenceOnEnter: "true",
		EndConferenceOnExit:    "false",
		WaitUrl:                waitURL,
	}
	dial := &twiml.VoiceDial{
		InnerElements: []twiml.Element{conf},
	}
	return twiml.Voice([]twiml.Element{dial})
}

// SilenceTwiML renders the hold document: a pause and nothing else. The
// provider loops it while a participant waits alone in the conference.
func SilenceTwiML() (string, error) {
	pause := &twiml.VoicePause{
		Length: "30",
	}
	return twiml.Voice([]twiml.Element{pause})
}
