package upstream

import "strings"

// DefaultMode is used for unknown or absent mode names.
const DefaultMode = "general"

// minOutputTokens is the floor applied after profile lookup and capping.
const minOutputTokens = 64

// ModeProfile maps a response-style mode to generation parameters.
type ModeProfile struct {
	Temperature     float64
	MaxOutputTokens int
}

// modeProfiles is the static mode table.
var modeProfiles = map[string]ModeProfile{
	"general":     {Temperature: 0.7, MaxOutputTokens: 1700},
	"health":      {Temperature: 1.2, MaxOutputTokens: 2200},
	"sports":      {Temperature: 0.8, MaxOutputTokens: 1500},
	"tech":        {Temperature: 0.9, MaxOutputTokens: 2500},
	"news":        {Temperature: 0.6, MaxOutputTokens: 1500},
	"programming": {Temperature: 1.5, MaxOutputTokens: 3200},
}

// NormalizeMode lowercases the mode name and substitutes the default for
// empty or unrecognized names.
func NormalizeMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if _, ok := modeProfiles[m]; !ok {
		return DefaultMode
	}
	return m
}

// ResolveProfile returns the profile for a normalized mode name.
func ResolveProfile(mode string) ModeProfile {
	if p, ok := modeProfiles[NormalizeMode(mode)]; ok {
		return p
	}
	return modeProfiles[DefaultMode]
}

// clampTokens bounds a requested token budget to [minOutputTokens, cap].
func clampTokens(requested, cap int) int {
	if cap > 0 && requested > cap {
		requested = cap
	}
	if requested < minOutputTokens {
		requested = minOutputTokens
	}
	return requested
}
