// internal/backend/hash.go

// Package backend provides the screen capture and input synthesis
// implementations the monitor runs against.
package backend

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// HashFrame returns the FNV-1a hash of a frame's RGBA pixels, sampling every
// downscale-th pixel in both directions. The frame size is part of the hash.
func HashFrame(f schemas.Frame, downscale int) uint64 {
	if downscale < 1 {
		downscale = 1
	}
	h := fnv.New64a()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[:4], uint32(f.Width))
	binary.LittleEndian.PutUint32(dims[4:], uint32(f.Height))
	_, _ = h.Write(dims[:])

	for y := 0; y < f.Height; y += downscale {
		start := y * f.Stride
		if start >= len(f.Bytes) {
			break
		}
		row := f.Bytes[start:]
		for x := 0; x < f.Width; x += downscale {
			i := 4 * x
			if i+4 > len(row) {
				break
			}
			_, _ = h.Write(row[i : i+4])
		}
	}
	return h.Sum64()
}
