package core

import (
	"hash/fnv"
	"strconv"
)

// userColors is the fixed display palette. Translucent tailwind shades,
// matching what the web client renders.
var userColors = []string{
	"#ef444426", // red-500
	"#f9731626", // orange-500
	"#f59e0b26", // amber-500
	"#eab30826", // yellow-500
	"#84cc1626", // lime-500
	"#22c55e26", // green-500
	"#10b98126", // emerald-500
	"#14b8a626", // teal-500
	"#06b6d426", // cyan-500
	"#0ea5e926", // sky-500
	"#3b82f626", // blue-500
	"#6366f126", // indigo-500
	"#8b5cf626", // violet-500
	"#a855f726", // purple-500
	"#d946ef26", // fuchsia-500
	"#ec489926", // pink-500
	"#f43f5e26", // rose-500
	"#9ca3af26", // gray-400
	"#6b728026", // gray-500
	"#37415126", // gray-700
}

// colorFor deterministically maps a transport id into the palette.
// Numeric ids (remote ports) index directly; anything else goes through
// FNV-1a first. Cosmetic only, but must be reproducible.
func colorFor(transportID string) string {
	if n, err := strconv.ParseUint(transportID, 10, 64); err == nil {
		return userColors[n%uint64(len(userColors))]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(transportID))
	return userColors[h.Sum32()%uint32(len(userColors))]
}
