package llm

import (
	"strings"
)

// stripFences removes leading/trailing markdown code fences from a model
// reply. Models regularly wrap JSON in ``` or ```json despite instructions.
func stripFences(s string) string {
	out := strings.TrimSpace(s)
	if strings.HasPrefix(out, "```") {
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		} else {
			out = strings.TrimPrefix(out, "```json")
			out = strings.TrimPrefix(out, "```")
		}
	}
	out = strings.TrimSpace(out)
	if strings.HasSuffix(out, "```") {
		out = out[:len(out)-3]
	}
	return strings.TrimSpace(out)
}
