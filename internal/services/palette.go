package services

import "strings"

// DefaultColorHex is the display fallback for colors outside the palette.
const DefaultColorHex = "#000000"

var colorPalette = map[string]string{
	"red":    "#ef4444",
	"blue":   "#3b82f6",
	"green":  "#10b981",
	"yellow": "#f59e0b",
	"purple": "#8b5cf6",
	"pink":   "#ec4899",
	"black":  "#000000",
	"white":  "#ffffff",
	"gray":   "#6b7280",
	"orange": "#f97316",
}

// ColorOutcome tags the result of a palette lookup.
type ColorOutcome int

const (
	// ColorUnknown means the name is not part of the palette.
	ColorUnknown ColorOutcome = iota
	// ColorResolved means the name mapped to a palette entry.
	ColorResolved
)

// ColorResolution separates "explicitly black" from "not in the palette".
type ColorResolution struct {
	Outcome ColorOutcome
	Name    string
	hex     string
}

// Resolved reports whether the color was found in the palette.
func (r ColorResolution) Resolved() bool {
	return r.Outcome == ColorResolved
}

// Hex returns the palette hex code, or DefaultColorHex for unknown colors.
func (r ColorResolution) Hex() string {
	if r.Outcome == ColorResolved {
		return r.hex
	}
	return DefaultColorHex
}

// ResolveColor looks name up in the palette, ignoring case and surrounding space.
func ResolveColor(name string) ColorResolution {
	key := strings.ToLower(strings.TrimSpace(name))
	if hex, ok := colorPalette[key]; ok {
		return ColorResolution{Outcome: ColorResolved, Name: name, hex: hex}
	}
	return ColorResolution{Outcome: ColorUnknown, Name: name}
}

// ColorHex returns the display hex for name. Unknown names fall back to black
// silently; use ResolveColor to tell the two apart.
func ColorHex(name string) string {
	return ResolveColor(name).Hex()
}
