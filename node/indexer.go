package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	"zoro.dev/client/consensus"
	"zoro.dev/client/node/store"
)

// Indexer fetches headers over RPC, caches them, and folds them into
// chain state snapshots for batch generation. The store is optional:
// with a nil store every lookup goes to the RPC endpoint.
type Indexer struct {
	client *Client
	store  *store.DB
	logger *slog.Logger
}

func NewIndexer(client *Client, st *store.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{client: client, store: st, logger: logger}
}

// HeaderAtHeight returns the header for height, from the cache when
// present.
func (ix *Indexer) HeaderAtHeight(ctx context.Context, height uint64) (*HeaderInfo, error) {
	if h, ok := ix.cachedHeader(height); ok {
		return h, nil
	}
	blockHash, err := ix.client.GetBlockHash(ctx, height)
	if err != nil {
		return nil, err
	}
	h, err := ix.client.GetBlockHeader(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	ix.cacheHeader(h)
	return h, nil
}

func (ix *Indexer) cachedHeader(height uint64) (*HeaderInfo, bool) {
	if ix.store == nil {
		return nil, false
	}
	raw, ok, err := ix.store.GetHeader(height)
	if err != nil || !ok {
		return nil, false
	}
	var h HeaderInfo
	if err := json.Unmarshal(raw, &h); err != nil {
		ix.logger.Warn("dropping corrupt cached header", "height", height, "error", err.Error())
		return nil, false
	}
	// A header cached before its successor existed has no nextblockhash;
	// refetch it so batch walks do not stall at a stale tip.
	if h.NextBlockHash == "" {
		return nil, false
	}
	return &h, true
}

func (ix *Indexer) cachedChainState(height uint64) (consensus.ChainState, bool) {
	if ix.store == nil {
		return consensus.ChainState{}, false
	}
	raw, ok, err := ix.store.GetChainState(height)
	if err != nil || !ok {
		return consensus.ChainState{}, false
	}
	var state consensus.ChainState
	if err := json.Unmarshal(raw, &state); err != nil {
		ix.logger.Warn("dropping corrupt cached chain state", "height", height, "error", err.Error())
		return consensus.ChainState{}, false
	}
	return state, true
}

func (ix *Indexer) cacheHeader(h *HeaderInfo) {
	if ix.store == nil {
		return
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return
	}
	if err := ix.store.PutHeader(h.Height, raw); err != nil {
		ix.logger.Warn("header cache write failed", "height", h.Height, "error", err.Error())
	}
}

// FetchChainState reconstructs the chain state as of block height by
// walking back over the block's ancestors. Only as many ancestors as
// actually exist are queried; for early blocks the timestamp and target
// windows stay under-filled, which is how the downstream program knows
// to skip difficulty adjustment.
func (ix *Indexer) FetchChainState(ctx context.Context, height uint64) (consensus.ChainState, *HeaderInfo, error) {
	// A checkpoint written by an earlier batch makes the ancestor walk
	// unnecessary, and carries the exact accumulated work instead of the
	// bootstrap approximation.
	if state, ok := ix.cachedChainState(height); ok {
		head, err := ix.HeaderAtHeight(ctx, height)
		if err != nil {
			return consensus.ChainState{}, nil, err
		}
		ix.logger.Debug("chain state restored from checkpoint", "height", height)
		return state, head, nil
	}

	head, err := ix.HeaderAtHeight(ctx, height)
	if err != nil {
		return consensus.ChainState{}, nil, err
	}
	headBits, err := consensus.ParseBits(head.Bits)
	if err != nil {
		return consensus.ChainState{}, nil, fmt.Errorf("header %d: %w", height, err)
	}
	bestHash, err := consensus.ParseHash(head.Hash)
	if err != nil {
		return consensus.ChainState{}, nil, fmt.Errorf("header %d: %w", height, err)
	}

	maxPrevBlocks := uint64(consensus.MAX_TIMESTAMP_HISTORY - 1)
	if height < maxPrevBlocks {
		maxPrevBlocks = height
	}

	timestamps := []uint64{head.Time}
	powHistory := []*big.Int{consensus.BitsToTarget(headBits)}
	current := head
	for i := uint64(0); i < maxPrevBlocks; i++ {
		prevHash := current.PreviousBlockHash
		if prevHash == "" {
			break
		}
		current, err = ix.client.GetBlockHeader(ctx, prevHash)
		if err != nil {
			return consensus.ChainState{}, nil, err
		}
		if len(timestamps) < consensus.MAX_TIMESTAMP_HISTORY {
			timestamps = append([]uint64{current.Time}, timestamps...)
		}
		if len(powHistory) < consensus.POW_AVERAGING_WINDOW {
			bits, err := consensus.ParseBits(current.Bits)
			if err != nil {
				return consensus.ChainState{}, nil, fmt.Errorf("header %d: %w", current.Height, err)
			}
			powHistory = append([]*big.Int{consensus.BitsToTarget(bits)}, powHistory...)
		}
	}

	epochStart := consensus.GENESIS_TIME
	if height >= consensus.EPOCH_LENGTH {
		epochStart, err = ix.epochStartTime(ctx, height)
		if err != nil {
			return consensus.ChainState{}, nil, err
		}
	}

	// The endpoint does not report chainwork, so total work is seeded
	// with the head block's work times the chain length. Subsequent
	// folds accumulate exact per-block work on top of this baseline.
	target := consensus.BitsToTarget(headBits)
	blockWork := consensus.TargetToWork(target)
	totalWork := new(big.Int).Mul(blockWork, new(big.Int).SetUint64(height+1))

	state := consensus.ChainState{
		Height:           head.Height,
		TotalWork:        totalWork,
		BestHash:         bestHash,
		CurrentTarget:    target,
		PrevTimestamps:   timestamps,
		EpochStartTime:   epochStart,
		PowTargetHistory: powHistory,
	}
	return state, head, nil
}

// epochStartTime returns the timestamp of the first block of the
// difficulty epoch containing height.
func (ix *Indexer) epochStartTime(ctx context.Context, height uint64) (uint64, error) {
	epochStartHeight := (height / consensus.EPOCH_LENGTH) * consensus.EPOCH_LENGTH
	h, err := ix.HeaderAtHeight(ctx, epochStartHeight)
	if err != nil {
		return 0, err
	}
	return h.Time, nil
}

// Batch is the human-readable proving input for one block range: the
// starting chain state, the blocks to apply, and the expected state
// after applying them.
type Batch struct {
	ChainState consensus.ChainState `json:"chain_state"`
	Blocks     []FormattedBlock     `json:"blocks"`
	Expected   consensus.ChainState `json:"expected"`
}

// GenerateBatch builds the proving input for numBlocks blocks applied
// on top of the chain state at initialHeight.
func (ix *Indexer) GenerateBatch(ctx context.Context, initialHeight uint64, numBlocks int) (*Batch, error) {
	if numBlocks < 1 {
		return nil, fmt.Errorf("num_blocks must be >= 1, got %d", numBlocks)
	}

	ix.logger.Debug("fetching initial chain state",
		"first", initialHeight,
		"last", initialHeight+uint64(numBlocks)-1,
	)

	state, head, err := ix.FetchChainState(ctx, initialHeight)
	if err != nil {
		return nil, err
	}
	initialState := state

	nextBlockHash := head.NextBlockHash
	blocks := make([]FormattedBlock, 0, numBlocks)
	var firstBits, lastBits uint32

	for i := 0; i < numBlocks; i++ {
		if nextBlockHash == "" {
			return nil, fmt.Errorf("no next block hash for block %d", initialHeight+uint64(i)+1)
		}

		h, err := ix.client.GetBlockHeader(ctx, nextBlockHash)
		if err != nil {
			return nil, err
		}
		ix.cacheHeader(h)

		formatted, err := FormatBlock(h)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, formatted)
		if i == 0 {
			firstBits = formatted.Header.Bits
		}
		lastBits = formatted.Header.Bits

		ch, err := ConsensusHeader(h)
		if err != nil {
			return nil, err
		}
		state = state.Advance(ch)

		ix.logger.Info("fetched block", "height", h.Height, "progress", fmt.Sprintf("%d/%d", i+1, numBlocks))
		nextBlockHash = h.NextBlockHash
	}

	// The program checks the target it derives against the target
	// implied by each block's nBits, so both snapshots carry the target
	// of the nearest applied block rather than the fetched head's.
	initialState.CurrentTarget = consensus.BitsToTarget(firstBits)
	state.CurrentTarget = consensus.BitsToTarget(lastBits)

	batch := &Batch{ChainState: initialState, Blocks: blocks, Expected: state}
	if err := ix.checkpoint(batch); err != nil {
		ix.logger.Warn("chain state checkpoint failed", "error", err.Error())
	}
	return batch, nil
}

// checkpoint persists the folded state and advances the cache manifest.
func (ix *Indexer) checkpoint(batch *Batch) error {
	if ix.store == nil {
		return nil
	}
	raw, err := json.Marshal(batch.Expected)
	if err != nil {
		return err
	}
	if err := ix.store.PutChainState(batch.Expected.Height, raw); err != nil {
		return err
	}
	m := ix.store.Manifest()
	if m == nil {
		m = &store.Manifest{SchemaVersion: store.SchemaVersionV1, Network: "mainnet"}
	}
	if batch.Expected.Height >= m.TipHeight {
		updated := *m
		updated.TipHeight = batch.Expected.Height
		updated.TipHashHex = fmt.Sprintf("%x", batch.Expected.BestHash)
		updated.TipTotalWork = batch.Expected.TotalWork.String()
		return ix.store.SetManifest(&updated)
	}
	return nil
}
