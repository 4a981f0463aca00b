package node

import (
	"encoding/hex"
	"fmt"
	"strings"

	"zoro.dev/client/consensus"
)

// FormattedHeader is a block header shaped for the Cairo program input.
// Field order matters: the argument encoder consumes object keys
// positionally.
type FormattedHeader struct {
	Version          int64    `json:"version"`
	FinalSaplingRoot string   `json:"final_sapling_root"`
	Time             uint64   `json:"time"`
	Bits             uint32   `json:"bits"`
	Nonce            string   `json:"nonce"`
	Indices          []uint32 `json:"indices"`
}

type BlockData struct {
	VariantID    int           `json:"variant_id"`
	MerkleRoot   string        `json:"merkle_root,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

type FormattedBlock struct {
	Header FormattedHeader `json:"header"`
	Data   BlockData       `json:"data"`
}

// commitmentForHeight selects the header commitment field for the
// network upgrade active at height:
//   - pre-Sapling: reserved field (all zeros)
//   - Sapling..Heartwood: hashFinalSaplingRoot
//   - Heartwood onward: hashBlockCommitments (hashLightClientRoot,
//     then including Orchard after NU5)
func commitmentForHeight(h *HeaderInfo) string {
	var commitment string
	switch {
	case consensus.IsHeartwoodActive(h.Height):
		commitment = h.BlockCommitments
	default:
		commitment = h.FinalSaplingRoot
	}
	if commitment == "" {
		commitment = strings.Repeat("0", 64)
	}
	return commitment
}

// FormatHeader shapes an RPC block header for the Cairo program,
// unpacking the compact target and the Equihash solution.
func FormatHeader(h *HeaderInfo) (FormattedHeader, error) {
	bits, err := consensus.ParseBits(h.Bits)
	if err != nil {
		return FormattedHeader{}, fmt.Errorf("header %d: %w", h.Height, err)
	}
	indices, err := decodeSolutionHex(h.Solution)
	if err != nil {
		return FormattedHeader{}, fmt.Errorf("header %d: %w", h.Height, err)
	}
	nonce := h.Nonce
	if nonce == "" {
		nonce = strings.Repeat("0", 64)
	}
	return FormattedHeader{
		Version:          h.Version,
		FinalSaplingRoot: commitmentForHeight(h),
		Time:             h.Time,
		Bits:             bits,
		Nonce:            normalizeHashString(nonce),
		Indices:          indices,
	}, nil
}

// FormatBlock shapes a block without transactions: the data part
// carries only the merkle root.
func FormatBlock(h *HeaderInfo) (FormattedBlock, error) {
	header, err := FormatHeader(h)
	if err != nil {
		return FormattedBlock{}, err
	}
	return FormattedBlock{
		Header: header,
		Data:   BlockData{VariantID: 0, MerkleRoot: h.MerkleRoot},
	}, nil
}

func normalizeHashString(value string) string {
	value = strings.ToLower(value)
	return strings.TrimPrefix(value, "0x")
}

// decodeSolutionHex unpacks a hex-encoded Equihash solution into its
// 21-bit indices. An empty solution yields an empty index list, not nil,
// so it serializes as an empty JSON array.
func decodeSolutionHex(solutionHex string) ([]uint32, error) {
	solutionHex = normalizeHashString(solutionHex)
	if solutionHex == "" {
		return []uint32{}, nil
	}
	data, err := hex.DecodeString(solutionHex)
	if err != nil {
		return nil, fmt.Errorf("solution hex: %w", err)
	}
	return consensus.DecodeSolution(data)
}

// ConsensusHeader converts an RPC header to the compact form the chain
// state fold consumes.
func ConsensusHeader(h *HeaderInfo) (consensus.Header, error) {
	bits, err := consensus.ParseBits(h.Bits)
	if err != nil {
		return consensus.Header{}, fmt.Errorf("header %d: %w", h.Height, err)
	}
	hash, err := consensus.ParseHash(h.Hash)
	if err != nil {
		return consensus.Header{}, fmt.Errorf("header %d: %w", h.Height, err)
	}
	return consensus.Header{
		Height: h.Height,
		Hash:   hash,
		Time:   h.Time,
		Bits:   bits,
	}, nil
}
