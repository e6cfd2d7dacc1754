package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotePatchApply(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	title := "new title"
	empty := ""

	n := &Note{Title: "old", Content: "body", CreatedAt: created, UpdatedAt: created}
	NotePatch{Title: &title, Content: &empty}.Apply(n, now)

	assert.Equal(t, "new title", n.Title)
	assert.Equal(t, "body", n.Content)
	assert.Equal(t, now, n.UpdatedAt)
	assert.Equal(t, created, n.CreatedAt)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "admin@acme.test", NormalizeEmail("  Admin@ACME.test "))
}

func TestEnums(t *testing.T) {
	assert.True(t, TierFree.Valid())
	assert.True(t, TierPro.Valid())
	assert.False(t, Tier("enterprise").Valid())
	assert.True(t, RoleMember.Valid())
	assert.False(t, Role("owner").Valid())
}
