// Package models defines the core data structures for the feedback bot.
//
// It includes user identity, locale, and keyboard descriptor types shared
// across modules.
package models

import (
	"errors"
	"strconv"
)

// Locale identifies a supported catalogue language.
type Locale string

const (
	// LocaleRU is the Russian catalogue.
	LocaleRU Locale = "ru"
	// LocaleUZ is the Uzbek (Cyrillic) catalogue.
	LocaleUZ Locale = "uz"
)

// Error variables for better error handling and testability
var (
	ErrInvalidLocale   = errors.New("unsupported locale")
	ErrEmptyRecipient  = errors.New("recipient cannot be empty")
	ErrServiceStopped  = errors.New("messaging service is stopped")
	ErrUnknownCallback = errors.New("unknown callback token")
)

// IsValidLocale checks if the given locale is supported.
func IsValidLocale(l Locale) bool {
	switch l {
	case LocaleRU, LocaleUZ:
		return true
	default:
		return false
	}
}

// ParseLocale converts a raw string into a Locale.
func ParseLocale(s string) (Locale, error) {
	l := Locale(s)
	if !IsValidLocale(l) {
		return "", ErrInvalidLocale
	}
	return l, nil
}

// Identity carries the stable chat identity of a user as seen by the
// transport. ID is the only field used for record lookup; the rest is
// display metadata copied into persisted rows.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Key returns the identity in the form stored in the identity column.
func (i Identity) Key() string {
	return strconv.FormatInt(i.ID, 10)
}

// Handle returns the best human-readable reference for notifications:
// @username when available, otherwise the numeric id.
func (i Identity) Handle() string {
	if i.Username != "" {
		return "@" + i.Username
	}
	return i.Key()
}

// Button is a single inline keyboard button: a visible label and the opaque
// token delivered back when pressed.
type Button struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// Keyboard is a declarative keyboard descriptor: either a grid of inline
// buttons, or a single "share contact" request button when RequestContact
// is set (the two are mutually exclusive on the wire).
type Keyboard struct {
	Rows           [][]Button `json:"rows,omitempty"`
	RequestContact bool       `json:"request_contact,omitempty"`
	ContactLabel   string     `json:"contact_label,omitempty"`
}

// MessageRef identifies a previously sent message for edits.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsZero reports whether the ref points at no message.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}
