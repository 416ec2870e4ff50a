package msgview

import (
	"unicode/utf16"

	"github.com/you/napgram-console/internal/core"
)

// Palette is the fixed sender color palette. Order and size are part of
// the rendering contract: SchemeFor indexes into it with a stable hash, so
// reordering, removing, or appending entries reassigns colors for every
// sender already seen by a deployment.
var Palette = [...]core.ColorScheme{
	{Gradient: "bg-gradient-to-br from-blue-400 to-blue-600", Badge: "bg-gradient-to-r from-blue-500 to-blue-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-purple-400 to-purple-600", Badge: "bg-gradient-to-r from-purple-500 to-purple-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-pink-400 to-pink-600", Badge: "bg-gradient-to-r from-pink-500 to-pink-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-rose-400 to-rose-600", Badge: "bg-gradient-to-r from-rose-500 to-rose-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-orange-400 to-orange-600", Badge: "bg-gradient-to-r from-orange-500 to-orange-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-amber-400 to-amber-600", Badge: "bg-gradient-to-r from-amber-500 to-amber-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-lime-400 to-lime-600", Badge: "bg-gradient-to-r from-lime-500 to-lime-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-emerald-400 to-emerald-600", Badge: "bg-gradient-to-r from-emerald-500 to-emerald-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-teal-400 to-teal-600", Badge: "bg-gradient-to-r from-teal-500 to-teal-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-cyan-400 to-cyan-600", Badge: "bg-gradient-to-r from-cyan-500 to-cyan-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-indigo-400 to-indigo-600", Badge: "bg-gradient-to-r from-indigo-500 to-indigo-600", BadgeText: "text-white"},
	{Gradient: "bg-gradient-to-br from-violet-400 to-violet-600", Badge: "bg-gradient-to-r from-violet-500 to-violet-600", BadgeText: "text-white"},
}

// PaletteIndex computes the palette slot for a sender id: the sum of the
// id's UTF-16 code units mod the palette size. The hash is intentionally
// simple and intentionally frozen, since the "same sender, same color"
// promise survives restarts and upgrades only as long as this exact
// formula does.
// Collisions between distinct senders are expected and fine.
func PaletteIndex(senderID string) int {
	sum := 0
	for _, u := range utf16.Encode([]rune(senderID)) {
		sum += int(u)
	}
	return sum % len(Palette)
}

// SchemeFor returns the color scheme for a normalized sender id. Callers
// must pass the id produced by Normalize so that placeholder senders keep
// a stable color too.
func SchemeFor(senderID string) core.ColorScheme {
	return Palette[PaletteIndex(senderID)]
}
