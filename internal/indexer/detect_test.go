package indexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected ResourceType
		ok       bool
	}{
		{"uuid v4", "550e8400-e29b-41d4-a716-446655440000", TypeUUID, true},
		{"uuid uppercase", "550E8400-E29B-41D4-A716-446655440000", TypeUUID, true},
		{"ari", "ari:cloud:jira::site/abc-123", TypePath, true},
		{"atlassian key", "PROJ-42", TypeSlug, true},
		{"numeric", "12345", TypeNumeric, true},
		{"numeric too short", "42", TypeUnknown, false},
		{"path", "/users/42/settings", TypePath, true},
		{"slug dash", "my-page-title", TypeSlug, true},
		{"slug underscore", "team_alpha", TypeSlug, true},
		{"plain word", "hello", TypeUnknown, false},
		{"sentence", "hello there world", TypeUnknown, false},
		{"empty", "", TypeUnknown, false},
		{"501 chars", strings.Repeat("a", 501), TypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := detectType(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestDetectionOrder(t *testing.T) {
	// A UUID is all-hex but must classify as uuid, not slug.
	typ, ok := detectType("550e8400-e29b-41d4-a716-446655440000")
	assert.True(t, ok)
	assert.Equal(t, TypeUUID, typ)

	// An Atlassian key looks slug-ish but takes the key branch.
	typ, ok = detectType("ABC-123")
	assert.True(t, ok)
	assert.Equal(t, TypeSlug, typ)
}

func TestIsIDLikeField(t *testing.T) {
	tests := []struct {
		field    string
		expected bool
	}{
		{"id", true},
		{"ID", true},
		{"uuid", true},
		{"key", true},
		{"userId", true},
		{"parentPageId", true}, // suffix match
		{"self", true},
		{"cloudid", true},
		{"title", false},
		{"description", false},
		{"count", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, isIDLikeField(tt.field), "field %q", tt.field)
	}
}

func TestIsStrongPattern(t *testing.T) {
	assert.True(t, isStrongPattern("550e8400-e29b-41d4-a716-446655440000"))
	assert.True(t, isStrongPattern("JIRA-9"))
	assert.False(t, isStrongPattern("my-page-title"))
	assert.False(t, isStrongPattern("/some/path"))
	assert.False(t, isStrongPattern(""))
}
