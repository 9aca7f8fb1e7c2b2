package application

import (
	"hash/fnv"
	"strings"
)

// DefaultColor is used for facilities without a usable name.
const DefaultColor = "#9E9E9E"

var facilityPalette = []string{
	"#4285F4",
	"#EA4335",
	"#FBBC05",
	"#34A853",
	"#8E24AA",
	"#FB8C00",
	"#0097A7",
	"#607D8B",
}

var knownFacilityColors = map[string]string{
	"Activity Center A": "#4285F4",
	"Activity Center B": "#EA4335",
	"Conference Room 1": "#FBBC05",
	"Conference Room 2": "#34A853",
	"Conference Room 3": "#8E24AA",
	"Conference Room 4": "#FB8C00",
	"Conference Room 5": "#0097A7",
	"Conference Room 6": "#607D8B",
}

// ColorKey derives a display color from a facility name. The result depends only on the name.
func ColorKey(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return DefaultColor
	}
	if color, ok := knownFacilityColors[name]; ok {
		return color
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return facilityPalette[h.Sum32()%uint32(len(facilityPalette))]
}
