package indexer

import (
	"fmt"
	"strconv"

	"mcpinspect/internal/envelope"
)

// candidate is one identifier found during traversal, before deduplication.
type candidate struct {
	id            string
	resourceType  ResourceType
	fieldName     string
	fieldPath     string
	parentContext map[string]interface{}
}

// parentContextMaxStringLen caps sibling strings captured as context.
const parentContextMaxStringLen = 200

// extract walks a tool response depth-first and returns all identifier
// candidates in discovery order.
func extract(response interface{}) []candidate {
	value := envelope.Unwrap(response)
	var out []candidate
	walk(value, "", "", nil, &out)
	return out
}

func walk(value interface{}, path, fieldName string, parentObj map[string]interface{}, out *[]candidate) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			walk(child, childPath, key, v, out)
		}

	case []interface{}:
		for i, child := range v {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if childObj, ok := child.(map[string]interface{}); ok {
				walk(child, childPath, fieldName, childObj, out)
			} else {
				walk(child, childPath, fieldName, parentObj, out)
			}
		}

	case string:
		emitString(v, path, fieldName, parentObj, out)

	case float64:
		// JSON numbers arrive as float64. Small numbers are far more likely
		// to be counts or flags than identifiers.
		if v > 100 && isIDLikeField(fieldName) {
			*out = append(*out, candidate{
				id:            strconv.FormatFloat(v, 'f', -1, 64),
				resourceType:  TypeNumeric,
				fieldName:     fieldName,
				fieldPath:     path,
				parentContext: sanitizeParentContext(parentObj, fieldName),
			})
		}
	}
}

func emitString(value, path, fieldName string, parentObj map[string]interface{}, out *[]candidate) {
	if isIDLikeField(fieldName) {
		resourceType, ok := detectType(value)
		if !ok {
			return
		}
		*out = append(*out, candidate{
			id:            value,
			resourceType:  resourceType,
			fieldName:     fieldName,
			fieldPath:     path,
			parentContext: sanitizeParentContext(parentObj, fieldName),
		})
		return
	}

	// Strong patterns are indexed even under unremarkable field names.
	if isStrongPattern(value) {
		resourceType, _ := detectType(value)
		*out = append(*out, candidate{
			id:            value,
			resourceType:  resourceType,
			fieldName:     fieldName,
			fieldPath:     path,
			parentContext: sanitizeParentContext(parentObj, fieldName),
		})
	}
}

// sanitizeParentContext captures the primitive siblings of an extracted
// identifier. Long strings are truncated; nested structures are dropped.
func sanitizeParentContext(parent map[string]interface{}, excludeField string) map[string]interface{} {
	if parent == nil {
		return nil
	}
	out := make(map[string]interface{})
	for key, value := range parent {
		if key == excludeField {
			continue
		}
		switch v := value.(type) {
		case string:
			if len(v) > parentContextMaxStringLen {
				out[key] = v[:parentContextMaxStringLen] + "..."
			} else {
				out[key] = v
			}
		case float64, bool:
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
