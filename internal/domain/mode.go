package domain

import "strings"

// TriggerPhrase switches a conversation into creator mode when a user
// message contains it, ignoring case.
const TriggerPhrase = "i always come back"

func ContainsTrigger(text string) bool {
	return strings.Contains(strings.ToLower(text), TriggerPhrase)
}

// LogHasTrigger reports whether any user turn in log contains the trigger
// phrase. Assistant turns are ignored.
func LogHasTrigger(log []Message) bool {
	for _, m := range log {
		if m.Role == RoleUser && ContainsTrigger(m.Content) {
			return true
		}
	}
	return false
}
