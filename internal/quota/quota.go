// Package quota decides whether a tenant may store another note.
package quota

import (
	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/model"
)

// FreeNoteLimit is the number of notes a free tenant may hold.
const FreeNoteLimit = 3

const limitMessage = "Free plan limit reached. Please upgrade to Pro for unlimited notes."

// CanCreateNote reports whether a tenant on tier holding count notes may create one more.
func CanCreateNote(tier model.Tier, count int) bool {
	if tier == model.TierPro {
		return true
	}
	return count < FreeNoteLimit
}

// Check is CanCreateNote as an error, suitable for storage.NoteStore.CreateNoteWithinQuota.
func Check(tier model.Tier, count int) error {
	if CanCreateNote(tier, count) {
		return nil
	}
	return errs.QuotaExceeded(limitMessage)
}

// LimitReached is the flag rendered to clients alongside a note listing.
func LimitReached(tier model.Tier, count int) bool {
	return !CanCreateNote(tier, count)
}
