package consensus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Header is the minimal consensus view of a block header: the fields the
// chain-state fold consumes. Richer RPC-shaped records live in the node layer.
type Header struct {
	Height uint64
	Hash   [32]byte
	Time   uint64
	Bits   uint32
}

// ChainState is the rolling snapshot of consensus-relevant history after
// applying some block. Snapshots are immutable: Advance returns a new value
// and never mutates its receiver, so a caller may keep or persist any
// snapshot and resume the fold from it later.
//
// PrevTimestamps and PowTargetHistory are ordered oldest-first and bounded by
// MAX_TIMESTAMP_HISTORY and POW_AVERAGING_WINDOW respectively. Under-filled
// windows near genesis are meaningful: the proving program reads the actual
// lengths to decide whether difficulty retargeting applies, so they are never
// padded with synthetic entries.
type ChainState struct {
	Height           uint64
	TotalWork        *big.Int
	BestHash         [32]byte
	CurrentTarget    *big.Int
	PrevTimestamps   []uint64
	EpochStartTime   uint64
	PowTargetHistory []*big.Int
}

// Advance folds one header into the state and returns the next snapshot.
// Headers must be applied in strictly increasing height order with no gaps;
// ordering is owned by the caller.
func (s ChainState) Advance(h Header) ChainState {
	next := ChainState{
		Height:         h.Height,
		BestHash:       h.Hash,
		EpochStartTime: s.EpochStartTime,
	}

	timestamps := make([]uint64, 0, len(s.PrevTimestamps)+1)
	timestamps = append(timestamps, s.PrevTimestamps...)
	timestamps = append(timestamps, h.Time)
	if len(timestamps) > MAX_TIMESTAMP_HISTORY {
		timestamps = timestamps[len(timestamps)-MAX_TIMESTAMP_HISTORY:]
	}
	next.PrevTimestamps = timestamps

	if h.Height%EPOCH_LENGTH == 0 {
		next.EpochStartTime = h.Time
	}

	target := BitsToTarget(h.Bits)
	next.CurrentTarget = target

	history := make([]*big.Int, 0, POW_AVERAGING_WINDOW+1)
	if len(s.PowTargetHistory) == 0 {
		for i := 0; i < POW_AVERAGING_WINDOW; i++ {
			history = append(history, PowLimitTarget)
		}
	} else {
		history = append(history, s.PowTargetHistory...)
	}
	history = append(history, target)
	if len(history) > POW_AVERAGING_WINDOW {
		history = history[len(history)-POW_AVERAGING_WINDOW:]
	}
	next.PowTargetHistory = history

	prevWork := s.TotalWork
	if prevWork == nil {
		prevWork = new(big.Int)
	}
	next.TotalWork = new(big.Int).Add(prevWork, TargetToWork(target))

	return next
}

// chainStateJSON is the checkpoint wire shape shared by the proving-argument
// batch files and the local checkpoint store. Unbounded integers travel as
// decimal strings.
type chainStateJSON struct {
	BlockHeight      uint64   `json:"block_height"`
	TotalWork        string   `json:"total_work"`
	BestBlockHash    string   `json:"best_block_hash"`
	CurrentTarget    string   `json:"current_target"`
	PrevTimestamps   []uint64 `json:"prev_timestamps"`
	EpochStartTime   uint64   `json:"epoch_start_time"`
	PowTargetHistory []string `json:"pow_target_history"`
}

func (s ChainState) MarshalJSON() ([]byte, error) {
	totalWork := s.TotalWork
	if totalWork == nil {
		totalWork = new(big.Int)
	}
	currentTarget := s.CurrentTarget
	if currentTarget == nil {
		currentTarget = new(big.Int)
	}
	history := make([]string, 0, len(s.PowTargetHistory))
	for _, t := range s.PowTargetHistory {
		history = append(history, t.String())
	}
	timestamps := s.PrevTimestamps
	if timestamps == nil {
		timestamps = []uint64{}
	}
	return json.Marshal(chainStateJSON{
		BlockHeight:      s.Height,
		TotalWork:        totalWork.String(),
		BestBlockHash:    hex.EncodeToString(s.BestHash[:]),
		CurrentTarget:    currentTarget.String(),
		PrevTimestamps:   timestamps,
		EpochStartTime:   s.EpochStartTime,
		PowTargetHistory: history,
	})
}

func (s *ChainState) UnmarshalJSON(raw []byte) error {
	var disk chainStateJSON
	if err := json.Unmarshal(raw, &disk); err != nil {
		return err
	}
	bestHash, err := ParseHash(disk.BestBlockHash)
	if err != nil {
		return fmt.Errorf("best_block_hash: %w", err)
	}
	totalWork, err := parseDecimalBig("total_work", disk.TotalWork)
	if err != nil {
		return err
	}
	currentTarget, err := parseDecimalBig("current_target", disk.CurrentTarget)
	if err != nil {
		return err
	}
	history := make([]*big.Int, 0, len(disk.PowTargetHistory))
	for _, item := range disk.PowTargetHistory {
		t, err := parseDecimalBig("pow_target_history", item)
		if err != nil {
			return err
		}
		history = append(history, t)
	}
	*s = ChainState{
		Height:           disk.BlockHeight,
		TotalWork:        totalWork,
		BestHash:         bestHash,
		CurrentTarget:    currentTarget,
		PrevTimestamps:   disk.PrevTimestamps,
		EpochStartTime:   disk.EpochStartTime,
		PowTargetHistory: history,
	}
	return nil
}

// ParseHash parses a 64-character hex digest, accepting an optional 0x prefix.
func ParseHash(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hash %q: %w", value, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32-byte hash, got %d bytes", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseDecimalBig(name, value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid decimal %q", name, value)
	}
	return n, nil
}
