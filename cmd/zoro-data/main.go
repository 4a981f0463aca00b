// Command zoro-data fetches a block range over RPC and writes the
// proving input batch: the initial chain state, the formatted blocks,
// and the expected chain state after applying them.
//
// Example: zoro-data -height 0 -num-blocks 10 -output light_0_10.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"zoro.dev/client/node"
	"zoro.dev/client/node/store"
)

func main() {
	cfg := node.ConfigFromEnv()

	height := flag.Uint64("height", 0, "block height of the initial chain state (0 = state after genesis)")
	numBlocks := flag.Int("num-blocks", 0, "number of blocks to apply on top of it (at least 1)")
	outputFile := flag.String("output", "", "output file (stdout when empty)")
	full := flag.Bool("full", false, "include transactions instead of merkle roots")
	cacheDir := flag.String("cache", "", "header cache directory (disabled when empty)")
	flag.StringVar(&cfg.RPCURL, "rpc", cfg.RPCURL, "JSON-RPC endpoint URL")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	flag.Parse()

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	if *numBlocks < 1 {
		_, _ = fmt.Fprintln(os.Stderr, "num-blocks must be at least 1")
		os.Exit(2)
	}

	logger := node.NewLogger(cfg.LogLevel)
	client := node.NewClient(cfg, logger)

	var st *store.DB
	if *cacheDir != "" {
		var err error
		st, err = store.Open(*cacheDir)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "cache open failed: %v\n", err)
			os.Exit(2)
		}
		defer st.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	indexer := node.NewIndexer(client, st, logger)
	batch, err := indexer.GenerateBatch(ctx, *height, *numBlocks)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch generation failed: %v\n", err)
		os.Exit(1)
	}

	if *full {
		if err := expandTransactions(ctx, client, batch); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "transaction resolution failed: %v\n", err)
			os.Exit(1)
		}
	}

	out, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch encode failed: %v\n", err)
		os.Exit(1)
	}
	out = append(out, '\n')

	if *outputFile == "" {
		_, _ = os.Stdout.Write(out)
		return
	}
	if err := os.WriteFile(*outputFile, out, 0o600); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "output write failed: %v\n", err)
		os.Exit(1)
	}
	logger.Info("batch written", "file", *outputFile, "blocks", len(batch.Blocks))
}

// expandTransactions swaps each header-only block for the full block
// with resolved transactions.
func expandTransactions(ctx context.Context, client *node.Client, batch *node.Batch) error {
	height := batch.ChainState.Height
	for i := range batch.Blocks {
		blockHeight := height + uint64(i) + 1
		blockHash, err := client.GetBlockHash(ctx, blockHeight)
		if err != nil {
			return err
		}
		block, err := client.FetchBlock(ctx, blockHash)
		if err != nil {
			return err
		}
		full, err := client.FormatBlockWithTransactions(ctx, block)
		if err != nil {
			return err
		}
		batch.Blocks[i] = full
	}
	return nil
}
