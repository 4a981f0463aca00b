// Command zoro-prove generates proving inputs batch by batch and runs
// the external Cairo trace and proving toolchain over them.
//
// Example: zoro-prove -blocks 100 -step 10
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"zoro.dev/client/node"
	"zoro.dev/client/node/store"
)

func main() {
	cfg := node.ConfigFromEnv()
	proverCfg := node.DefaultProverConfig()

	start := flag.Int64("start", -1, "start block height (auto-detected from existing proofs when negative)")
	blocks := flag.Int("blocks", 1, "number of blocks to process (0 means up to the chain tip)")
	step := flag.Int("step", 10, "blocks per proof batch")
	verbose := flag.Bool("verbose", false, "verbose logging")
	flag.StringVar(&cfg.RPCURL, "rpc", cfg.RPCURL, "JSON-RPC endpoint URL")
	flag.StringVar(&proverCfg.ProofDir, "proof-dir", proverCfg.ProofDir, "directory for proof batches")
	flag.StringVar(&proverCfg.Executable, "executable", proverCfg.Executable, "compiled Cairo executable")
	flag.StringVar(&proverCfg.Bootloader, "bootloader", proverCfg.Bootloader, "compiled bootloader program")
	flag.StringVar(&proverCfg.ParamsFile, "params", proverCfg.ParamsFile, "prover parameter file")
	flag.Parse()

	if *verbose {
		cfg.LogLevel = "debug"
	}
	cfg.ProofDir = proverCfg.ProofDir
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	if *step <= 0 {
		_, _ = fmt.Fprintln(os.Stderr, "step must be > 0")
		os.Exit(2)
	}

	logger := node.NewLogger(cfg.LogLevel)

	startHeight := uint64(0)
	if *start >= 0 {
		startHeight = uint64(*start)
	} else {
		startHeight = node.AutoDetectStart(proverCfg.ProofDir)
		logger.Info("auto-detected start", "height", startHeight)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "cache"))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "cache open failed: %v\n", err)
		os.Exit(2)
	}
	defer st.Close()

	client := node.NewClient(cfg, logger)
	indexer := node.NewIndexer(client, st, logger)
	prover := node.NewProver(proverCfg, indexer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	numBlocks := *blocks
	if numBlocks <= 0 {
		tip, err := client.GetBlockCount(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "getblockcount failed: %v\n", err)
			os.Exit(1)
		}
		if tip <= startHeight {
			_, _ = fmt.Fprintf(os.Stderr, "nothing to prove: tip %d, start %d\n", tip, startHeight)
			os.Exit(1)
		}
		numBlocks = int(tip - startHeight)
		logger.Info("proving to chain tip", "tip", tip, "blocks", numBlocks)
	}

	proofFile, err := prover.ProveRange(ctx, startHeight, numBlocks, *step)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "proving failed: %v\n", err)
		os.Exit(1)
	}
	_, _ = fmt.Fprintf(os.Stdout, "Proof file generated: %s\n", proofFile)
}
