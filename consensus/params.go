// Package consensus implements the pure Zcash mainnet consensus rules needed to
// prepare light-client proving inputs: network upgrade activation boundaries,
// compact-target arithmetic, Equihash solution decoding, and the rolling
// chain-state fold applied across ordered block headers.
package consensus

// Zcash mainnet consensus parameters. These must stay in sync with the
// parameters compiled into the proving program.
const (
	POW_AVERAGING_WINDOW  = 17
	MEDIAN_TIME_WINDOW    = 11
	MAX_TIMESTAMP_HISTORY = POW_AVERAGING_WINDOW + MEDIAN_TIME_WINDOW

	// Compact encoding of the proof-of-work ceiling target.
	POW_LIMIT_BITS uint32 = 0x1d00ffff

	// Network upgrade activation heights (Zcash mainnet).
	OVERWINTER_ACTIVATION_HEIGHT uint64 = 347500  // ZIP 200, 201, 202, 203, 143
	SAPLING_ACTIVATION_HEIGHT    uint64 = 419200  // ZIP 205, 212, 213, 243
	BLOSSOM_ACTIVATION_HEIGHT    uint64 = 653600  // ZIP 208 - 75s block spacing
	HEARTWOOD_ACTIVATION_HEIGHT  uint64 = 903000  // ZIP 213, 221 - hashBlockCommitments
	CANOPY_ACTIVATION_HEIGHT     uint64 = 1046400 // ZIP 211, 212, 214, 215, 216
	NU5_ACTIVATION_HEIGHT        uint64 = 1687104 // ZIP 224, 225, 226, 227, 244 - Orchard

	PRE_BLOSSOM_POW_TARGET_SPACING  uint64 = 150 // seconds
	POST_BLOSSOM_POW_TARGET_SPACING uint64 = 75  // seconds

	// Blocks per difficulty retarget epoch.
	EPOCH_LENGTH uint64 = 2016

	// Timestamp of the mainnet genesis block; epoch start time for every
	// height below the first retarget boundary.
	GENESIS_TIME uint64 = 1477953400
)

// IsOverwinterActive reports whether Overwinter is active at the given height.
func IsOverwinterActive(height uint64) bool {
	return height >= OVERWINTER_ACTIVATION_HEIGHT
}

// IsSaplingActive reports whether Sapling is active at the given height.
func IsSaplingActive(height uint64) bool {
	return height >= SAPLING_ACTIVATION_HEIGHT
}

// IsBlossomActive reports whether Blossom is active at the given height.
func IsBlossomActive(height uint64) bool {
	return height >= BLOSSOM_ACTIVATION_HEIGHT
}

// IsHeartwoodActive reports whether Heartwood is active at the given height.
func IsHeartwoodActive(height uint64) bool {
	return height >= HEARTWOOD_ACTIVATION_HEIGHT
}

// IsCanopyActive reports whether Canopy is active at the given height.
func IsCanopyActive(height uint64) bool {
	return height >= CANOPY_ACTIVATION_HEIGHT
}

// IsNU5Active reports whether NU5 (Orchard) is active at the given height.
func IsNU5Active(height uint64) bool {
	return height >= NU5_ACTIVATION_HEIGHT
}

// PowTargetSpacing returns the expected block spacing in seconds at the given height.
func PowTargetSpacing(height uint64) uint64 {
	if IsBlossomActive(height) {
		return POST_BLOSSOM_POW_TARGET_SPACING
	}
	return PRE_BLOSSOM_POW_TARGET_SPACING
}
