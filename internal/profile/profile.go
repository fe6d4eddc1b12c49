package profile

// ColorTag is the closed set of display colors a profile can carry.
type ColorTag string

const (
	ColorBlue   ColorTag = "blue"
	ColorRed    ColorTag = "red"
	ColorGreen  ColorTag = "green"
	ColorPurple ColorTag = "purple"
	ColorOrange ColorTag = "orange"
	ColorYellow ColorTag = "yellow"
)

// ValidColor reports whether c is a member of the closed color set.
func ValidColor(c ColorTag) bool {
	switch c {
	case ColorBlue, ColorRed, ColorGreen, ColorPurple, ColorOrange, ColorYellow:
		return true
	}
	return false
}

// Colors returns all valid color tags, for CLI help output.
func Colors() []ColorTag {
	return []ColorTag{ColorBlue, ColorRed, ColorGreen, ColorPurple, ColorOrange, ColorYellow}
}

// Profile is a persisted identity. The proxy injects its headers into
// forwarded requests and the resource indexer attributes discovered
// identifiers to it.
type Profile struct {
	ID            string            `json:"id"`
	DisplayName   string            `json:"displayName"`
	ColorTag      ColorTag          `json:"colorTag"`
	Authorization string            `json:"authorization,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	CreatedAt     int64             `json:"createdAt"`
	UpdatedAt     int64             `json:"updatedAt"`
}
