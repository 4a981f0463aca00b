package consensus

import "fmt"

// Equihash parameters for Zcash mainnet (n=200, k=9).
const (
	EQUIHASH_N = 200
	EQUIHASH_K = 9

	equihashCollisionBitLength = EQUIHASH_N / (EQUIHASH_K + 1)  // 20
	equihashBitsPerIndex       = equihashCollisionBitLength + 1 // 21

	// SOLUTION_NUM_INDICES is the number of indices carried by one solution.
	SOLUTION_NUM_INDICES = 1 << EQUIHASH_K // 512

	// SOLUTION_BYTES is the length of the minimal encoding:
	// ceil(512*21/8) bytes.
	SOLUTION_BYTES = (SOLUTION_NUM_INDICES*equihashBitsPerIndex + 7) / 8 // 1344
)

// DecodeSolution unpacks a minimal-encoded Equihash solution into its 512
// 21-bit indices. The input is treated as one big-endian bitstream: bit 0 is
// the most significant bit of byte 0.
//
// An empty input yields an empty index slice; headers formatted without a
// solution take this path. Any other length besides SOLUTION_BYTES is an
// ERR_INVALID_SOLUTION_LENGTH error.
func DecodeSolution(data []byte) ([]uint32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) != SOLUTION_BYTES {
		return nil, cerr(ERR_INVALID_SOLUTION_LENGTH,
			fmt.Sprintf("solution must be %d bytes, got %d", SOLUTION_BYTES, len(data)))
	}

	indices := make([]uint32, SOLUTION_NUM_INDICES)
	for idx := 0; idx < SOLUTION_NUM_INDICES; idx++ {
		var value uint32
		for b := 0; b < equihashBitsPerIndex; b++ {
			globalBit := idx*equihashBitsPerIndex + b
			bit := (data[globalBit/8] >> (7 - uint(globalBit%8))) & 1
			value = value<<1 | uint32(bit)
		}
		indices[idx] = value
	}
	return indices, nil
}
