package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateSenderID validates a messaging channel sender ID. WhatsApp sender
// IDs are phone numbers in international format without the plus sign.
func ValidateSenderID(id string) error {
	if len(id) == 0 {
		return errors.New("sender ID cannot be empty")
	}
	if len(id) > 20 {
		return errors.New("sender ID exceeds maximum length")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return errors.New("sender ID must be numeric")
		}
	}
	return nil
}

// ValidateMessageBody validates an inbound message body.
func ValidateMessageBody(body string) error {
	if len(body) == 0 {
		return errors.New("message body cannot be empty")
	}
	if len(body) > 4096 {
		return errors.New("message body exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return errors.New("message body must be valid UTF-8")
	}
	return nil
}

// ValidateCollectionName validates an admin browser collection name.
func ValidateCollectionName(name string) error {
	if len(name) == 0 {
		return errors.New("collection name cannot be empty")
	}
	if len(name) > 64 {
		return errors.New("collection name exceeds maximum length")
	}
	return nil
}
