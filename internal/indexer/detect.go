package indexer

import (
	"regexp"
	"strings"
)

// ResourceType classifies an extracted identifier.
type ResourceType string

const (
	TypeUUID    ResourceType = "uuid"
	TypeNumeric ResourceType = "numeric"
	TypePath    ResourceType = "path"
	TypeSlug    ResourceType = "slug"
	TypeUnknown ResourceType = "unknown"
)

// maxValueLength caps identifier candidates; anything longer is never an id.
const maxValueLength = 500

var (
	uuidPattern         = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	ariPattern          = regexp.MustCompile(`^ari:cloud:[a-z]+::[a-z0-9-]+/[a-z0-9-]+$`)
	atlassianKeyPattern = regexp.MustCompile(`^[A-Z]+-[0-9]+$`)
	numericPattern      = regexp.MustCompile(`^[0-9]{3,}$`)
	pathPattern         = regexp.MustCompile(`^/[\w\-/]+$`)
	slugPattern         = regexp.MustCompile(`(?i)^[a-z0-9]+[-_][a-z0-9]+[-_a-z0-9]*$`)
)

// idFieldNames are field names that mark their value as an identifier
// candidate. Matching is case-insensitive, on the exact name or as a suffix.
var idFieldNames = []string{
	"id", "uuid", "key", "resourceId", "objectId", "entityId", "userId",
	"accountId", "projectId", "issueId", "pageId", "spaceId", "ari",
	"cloudId", "siteId", "workspaceId", "boardId", "ticketId", "documentId",
	"fileId", "folderId", "groupId", "teamId", "channelId", "conversationId",
	"messageId", "attachmentId", "commentId", "self",
}

// isIDLikeField reports whether a field name marks identifier-bearing values.
func isIDLikeField(field string) bool {
	lower := strings.ToLower(field)
	for _, name := range idFieldNames {
		n := strings.ToLower(name)
		if lower == n || strings.HasSuffix(lower, n) {
			return true
		}
	}
	return false
}

// isStrongPattern reports whether a value is indexed regardless of its field
// name: UUIDs and Atlassian issue keys are unambiguous enough on their own.
func isStrongPattern(value string) bool {
	if value == "" || len(value) > maxValueLength {
		return false
	}
	return uuidPattern.MatchString(value) || atlassianKeyPattern.MatchString(value)
}

// detectType classifies a string value. First match wins; empty and oversized
// strings never classify.
func detectType(value string) (ResourceType, bool) {
	if value == "" || len(value) > maxValueLength {
		return TypeUnknown, false
	}
	switch {
	case uuidPattern.MatchString(value):
		return TypeUUID, true
	case ariPattern.MatchString(value):
		return TypePath, true
	case atlassianKeyPattern.MatchString(value):
		return TypeSlug, true
	case numericPattern.MatchString(value):
		return TypeNumeric, true
	case pathPattern.MatchString(value):
		return TypePath, true
	case slugPattern.MatchString(value):
		return TypeSlug, true
	}
	return TypeUnknown, false
}
