// Package conversation derives grouping keys for direct messages.
package conversation

import (
	"strconv"
	"strings"
)

// Separator joins the two participant identifiers. Decimal identifiers never contain it.
const Separator = "_"

// Key returns the order independent conversation key for two participants.
func Key(a, b uint) string {
	first := strconv.FormatUint(uint64(a), 10)
	second := strconv.FormatUint(uint64(b), 10)
	if second < first {
		first, second = second, first
	}
	return first + Separator + second
}

// Participants splits a key back into its two identifiers.
func Participants(key string) (uint, uint, bool) {
	left, right, found := strings.Cut(key, Separator)
	if !found {
		return 0, 0, false
	}
	a, err := strconv.ParseUint(left, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseUint(right, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return uint(a), uint(b), true
}

// Includes reports whether userID takes part in the conversation.
func Includes(key string, userID uint) bool {
	a, b, ok := Participants(key)
	return ok && (a == userID || b == userID)
}
