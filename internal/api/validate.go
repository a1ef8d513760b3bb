package api

import (
	"regexp"
	"unicode/utf8"
)

// maxNameLen is the maximum length for display name fields.
const maxNameLen = 200

// maxConferenceNameLen bounds conference names accepted on TwiML requests.
const maxConferenceNameLen = 128

// callSIDRe validates provider call SIDs: "CA" followed by 32 hex chars.
var callSIDRe = regexp.MustCompile(`^CA[0-9a-fA-F]{32}$`)

// e164Re validates phone numbers in E.164 form.
var e164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// clientRe validates browser client identities ("client:agent_7").
var clientRe = regexp.MustCompile(`^client:[A-Za-z0-9_\-.]{1,64}$`)

// sipRe validates SIP URIs loosely; the provider does the real parsing.
var sipRe = regexp.MustCompile(`^sip:[^@\s]+@[^\s]+$`)

// validateCallSID checks that a string is a well-formed provider call SID.
// Returns an error message if invalid, empty string if OK.
func validateCallSID(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if !callSIDRe.MatchString(value) {
		return field + " is not a valid call SID"
	}
	return ""
}

// validateDialTarget checks that a string is an address the provider can
// dial: an E.164 number, a client identity, or a SIP URI.
func validateDialTarget(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if e164Re.MatchString(value) || clientRe.MatchString(value) || sipRe.MatchString(value) {
		return ""
	}
	return field + " must be an E.164 number, client:name, or sip: URI"
}

// validateStringLen checks that a string does not exceed maxLen characters.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// containsControlChars checks whether a string has control characters
// (except common whitespace like \n, \r, \t).
func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}

// validateNoControlChars rejects strings with control characters.
func validateNoControlChars(field, value string) string {
	if containsControlChars(value) {
		return field + " contains invalid characters"
	}
	return ""
}
