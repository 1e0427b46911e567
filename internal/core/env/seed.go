package env

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// streamSeed derives an independent, reproducible seed for one random
// stream (one emitter) of one episode.
func streamSeed(base, episode uint64, stream int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], base)
	binary.LittleEndian.PutUint64(buf[8:16], episode)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(stream))
	return xxhash.Sum64(buf[:])
}
