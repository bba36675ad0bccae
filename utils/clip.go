package utils

import (
	"fmt"
	"hash/fnv"
)

const (
	// MaxNameLength is the longest name IAM accepts for roles and inline policies.
	MaxNameLength = 64

	// hashWidth is the number of hex digits of a 32-bit hash, plus one separator.
	hashWidth = 9
)

// ClipName joins seed and suffix with a dash, keeping the result within MaxNameLength.
// Seeds that do not fit are truncated and disambiguated with a hash of the whole seed:
//
//	<seed prefix>-<FNV-1a of seed, 8 uppercase hex digits>-<suffix>
func ClipName(seed, suffix string) string {
	budget := MaxNameLength - 1 - len(suffix)
	if len(seed) <= budget {
		return seed + "-" + suffix
	}

	keep := budget - hashWidth
	if keep < 0 {
		// only reachable with suffixes longer than MaxNameLength-hashWidth-1
		suffix = suffix[:MaxNameLength-hashWidth-1]
		keep = 0
	}
	return fmt.Sprintf("%s-%08X-%s", seed[:keep], hashString(seed), suffix)
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
