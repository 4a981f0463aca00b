package node

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"zoro.dev/client/cairoserde"
)

// ProverConfig names the external prover toolchain binaries and their
// shared inputs.
type ProverConfig struct {
	ProofDir    string
	Executable  string // compiled Cairo executable
	Bootloader  string
	ParamsFile  string
	Layout      string
	StepTimeout time.Duration
}

func DefaultProverConfig() ProverConfig {
	return ProverConfig{
		ProofDir:   ".proofs",
		Executable: "target/proving/zoro.executable.json",
		Bootloader: "bootloaders/simple_bootloader_compiled.json",
		ParamsFile: "prover_params.json",
		Layout:     "all_cairo_stwo",
	}
}

// Prover generates batch inputs and drives the external trace and
// proving binaries over them, one block range at a time.
type Prover struct {
	cfg     ProverConfig
	indexer *Indexer
	logger  *slog.Logger
}

func NewProver(cfg ProverConfig, indexer *Indexer, logger *slog.Logger) *Prover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prover{cfg: cfg, indexer: indexer, logger: logger}
}

// StepInfo records one external toolchain invocation.
type StepInfo struct {
	Step       string
	Stdout     string
	Stderr     string
	ReturnCode int
	Elapsed    time.Duration
}

func (p *Prover) runStep(ctx context.Context, batchDir, step string, args []string) StepInfo {
	if p.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.StepTimeout)
		defer cancel()
	}

	p.logger.Debug("running prover step", "step", step, "command", args)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	info := StepInfo{
		Step:    step,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: elapsed,
	}
	if err != nil {
		info.ReturnCode = -1
		if ee, ok := err.(*exec.ExitError); ok {
			info.ReturnCode = ee.ExitCode()
		}
		if ctx.Err() != nil {
			info.Stderr = fmt.Sprintf("process aborted after %s: %v", elapsed, ctx.Err())
		}
	}
	p.writeStepLog(batchDir, info)
	return info
}

func (p *Prover) writeStepLog(batchDir string, info StepInfo) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s STEP LOG ===\n", info.Step)
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Return Code: %d\n", info.ReturnCode)
	fmt.Fprintf(&buf, "Execution Time: %.2f seconds\n\n", info.Elapsed.Seconds())
	if info.Stdout != "" {
		fmt.Fprintf(&buf, "=== STDOUT ===\n%s\n", info.Stdout)
	}
	if info.Stderr != "" {
		fmt.Fprintf(&buf, "=== STDERR ===\n%s\n", info.Stderr)
	}
	logFile := filepath.Join(batchDir, strings.ToLower(info.Step)+".log")
	if err := os.WriteFile(logFile, buf.Bytes(), 0o600); err != nil {
		p.logger.Warn("step log write failed", "step", info.Step, "error", err.Error())
	}
}

// ProveBatch generates data and arguments for one block range and runs
// the trace and proving steps over them. It returns the proof path on
// success.
func (p *Prover) ProveBatch(ctx context.Context, height uint64, step int) (string, error) {
	jobInfo := fmt.Sprintf("Job(height=%d, blocks=%d)", height, step)
	p.logger.Debug("proving", "job", jobInfo)

	batchName := fmt.Sprintf("light_%d_to_%d", height, height+uint64(step))
	batchDir := filepath.Join(p.cfg.ProofDir, batchName)
	if err := os.MkdirAll(batchDir, 0o750); err != nil {
		return "", fmt.Errorf("%s: batch dir: %w", jobInfo, err)
	}

	previousProof := p.findPreviousProof(height)

	argsStart := time.Now()

	batch, err := p.indexer.GenerateBatch(ctx, height, step)
	if err != nil {
		return "", fmt.Errorf("%s: generate data: %w", jobInfo, err)
	}
	batchFile := filepath.Join(batchDir, "batch.json")
	batchJSON, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: batch encode: %w", jobInfo, err)
	}
	if err := os.WriteFile(batchFile, batchJSON, 0o600); err != nil {
		return "", fmt.Errorf("%s: batch write: %w", jobInfo, err)
	}

	p.logger.Debug("generating args", "job", jobInfo)
	argumentsFile := filepath.Join(batchDir, "arguments.json")
	if err := writeArguments(argumentsFile, batchJSON, previousProof); err != nil {
		return "", fmt.Errorf("%s: %w", jobInfo, err)
	}
	argsElapsed := time.Since(argsStart)

	proofFile := filepath.Join(batchDir, "proof.json")
	programInputFile := filepath.Join(batchDir, "program-input.json")

	// The bootloader runner consumes a program input built from the
	// executable and the argument file, not the argument file itself.
	inputInfo := p.runStep(ctx, batchDir, "GENERATE_INPUT", []string{
		"generate_program_input",
		"--executable", p.cfg.Executable,
		"--args-file", argumentsFile,
		"--program-hash-function", "blake",
		"--output", programInputFile,
	})
	if inputInfo.ReturnCode != 0 {
		return "", fmt.Errorf("%s: program input generation failed: %s", jobInfo, firstNonEmpty(inputInfo.Stderr, inputInfo.Stdout))
	}

	runnerInfo := p.runStep(ctx, batchDir, "CAIRO_RUNNER", []string{
		"cairo_program_runner",
		"--program", p.cfg.Bootloader,
		"--program_input", programInputFile,
		"--air_public_input", filepath.Join(batchDir, "pub.json"),
		"--air_private_input", filepath.Join(batchDir, "priv.json"),
		"--trace_file", filepath.Join(batchDir, "trace.json"),
		"--memory_file", filepath.Join(batchDir, "memory.json"),
		"--layout", p.cfg.Layout,
		"--proof_mode",
		"--execution_resources_file", filepath.Join(batchDir, "resources.json"),
		"--disable_trace_padding",
		"--merge_extra_segments",
	})
	if runnerInfo.ReturnCode != 0 {
		// Re-run through cairo-execute, which produces far better
		// diagnostics than the bootloader runner.
		p.logger.Error("trace generation failed, re-running for diagnostics", "job", jobInfo)
		execInfo := p.runStep(ctx, batchDir, "CAIRO_EXECUTE", []string{
			"cairo-execute",
			"--prebuilt",
			"--args-file", argumentsFile,
			"--output-path", filepath.Join(batchDir, "output.txt"),
			"--layout", p.cfg.Layout,
			p.cfg.Executable,
		})
		return "", fmt.Errorf("%s: trace generation failed: %s", jobInfo, firstNonEmpty(execInfo.Stderr, execInfo.Stdout, runnerInfo.Stderr, runnerInfo.Stdout))
	}

	proveInfo := p.runStep(ctx, batchDir, "PROVE", []string{
		"adapted_stwo",
		"--priv_json", filepath.Join(batchDir, "priv.json"),
		"--pub_json", filepath.Join(batchDir, "pub.json"),
		"--params_json", p.cfg.ParamsFile,
		"--proof_path", proofFile,
		"--proof-format", "cairo-serde",
		"--verify",
	})
	if proveInfo.ReturnCode != 0 {
		return "", fmt.Errorf("%s: proving failed: %s", jobInfo, firstNonEmpty(proveInfo.Stderr, proveInfo.Stdout))
	}

	if err := writeBatchManifest(batchDir, "batch.json", "arguments.json", "proof.json"); err != nil {
		p.logger.Warn("batch manifest write failed", "job", jobInfo, "error", err.Error())
	}
	p.cleanupTempFiles(batchDir)

	totalElapsed := argsElapsed + inputInfo.Elapsed + runnerInfo.Elapsed + proveInfo.Elapsed
	p.logger.Debug("step timing", "job", jobInfo, "generate_args", argsElapsed.String(), "generate_input", inputInfo.Elapsed.String(), "cairo_runner", runnerInfo.Elapsed.String(), "prove", proveInfo.Elapsed.String())
	p.logger.Info("batch proved", "job", jobInfo, "total_time", totalElapsed.String())
	return proofFile, nil
}

// findPreviousProof locates the proof for the batch that ends at
// height, if one exists.
func (p *Prover) findPreviousProof(height uint64) string {
	if height == 0 {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(p.cfg.ProofDir, fmt.Sprintf("light_*_to_%d", height)))
	if err != nil {
		return ""
	}
	for _, dir := range matches {
		proofFile := filepath.Join(dir, "proof.json")
		if _, err := os.Stat(proofFile); err == nil {
			return proofFile
		}
	}
	return ""
}

// writeArguments flattens the batch document into the Cairo argument
// array. When a previous proof exists, its serialized form is spliced
// into the arguments ahead of the verification flag.
func writeArguments(path string, batchJSON []byte, previousProof string) error {
	value, err := cairoserde.ParseJSON(batchJSON)
	if err != nil {
		return fmt.Errorf("parse batch: %w", err)
	}
	args, err := cairoserde.EncodeArgs(value)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	if previousProof != "" {
		raw, err := os.ReadFile(previousProof)
		if err != nil {
			return fmt.Errorf("read previous proof: %w", err)
		}
		var proofArgs []cairoserde.Arg
		if err := json.Unmarshal(raw, &proofArgs); err != nil {
			return fmt.Errorf("decode previous proof: %w", err)
		}
		// has-proof flag, then the proof body as a length-prefixed span.
		args = append(args, cairoserde.FeltArgUint64(0))
		args = append(args, cairoserde.FeltArgUint64(uint64(len(proofArgs))))
		args = append(args, proofArgs...)
	} else {
		args = append(args, cairoserde.FeltArgUint64(1))
	}

	out, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write arguments: %w", err)
	}
	return nil
}

// BatchManifest pins the content of a finished batch so later runs can
// detect artifact corruption or tampering.
type BatchManifest struct {
	CreatedAt string            `json:"created_at"`
	Artifacts map[string]string `json:"artifacts"` // file -> blake2b-256 hex
}

func writeBatchManifest(batchDir string, names ...string) error {
	m := BatchManifest{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Artifacts: make(map[string]string, len(names)),
	}
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(batchDir, name))
		if err != nil {
			return fmt.Errorf("manifest read %s: %w", name, err)
		}
		sum := blake2b.Sum256(raw)
		m.Artifacts[name] = hex.EncodeToString(sum[:])
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(batchDir, "manifest.json"), append(b, '\n'), 0o600)
}

// cleanupTempFiles drops the large intermediate trace artifacts once a
// batch has been proved.
func (p *Prover) cleanupTempFiles(batchDir string) {
	for _, name := range []string{"program-input.json", "trace.json", "memory.json", "priv.json"} {
		path := filepath.Join(batchDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("temp file cleanup failed", "file", path, "error", err.Error())
		}
	}
}

// ProveRange proves (start, start+blocks] in chunks of step blocks,
// shrinking the final chunk so it does not run past the end.
func (p *Prover) ProveRange(ctx context.Context, start uint64, blocks, step int) (string, error) {
	if step <= 0 {
		return "", fmt.Errorf("step must be > 0, got %d", step)
	}
	p.logger.Info("proving range", "start", start, "blocks", blocks, "step", step)

	if err := os.MkdirAll(p.cfg.ProofDir, 0o750); err != nil {
		return "", fmt.Errorf("proof dir: %w", err)
	}

	end := start + uint64(blocks)
	processed := 0
	var latestProof string

	for height := start; height < end; height += uint64(step) {
		currentStep := step
		if remaining := end - height; uint64(currentStep) > remaining {
			currentStep = int(remaining)
		}
		proofFile, err := p.ProveBatch(ctx, height, currentStep)
		if err != nil {
			p.logger.Error("batch failed, stopping", "height", height, "error", err.Error())
			return "", err
		}
		processed++
		latestProof = proofFile
	}

	p.logger.Info("all jobs processed", "count", processed)
	return latestProof, nil
}

var proofDirPattern = regexp.MustCompile(`^light_\d+_to_(\d+)$`)

// AutoDetectStart finds the resume height: the highest ending height
// among batch directories that actually contain a proof.
func AutoDetectStart(proofDir string) uint64 {
	var maxHeight uint64
	entries, err := os.ReadDir(proofDir)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := proofDirPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(proofDir, entry.Name(), "proof.json")); err != nil {
			continue
		}
		end, err := strconv.ParseUint(m[1], 10, 64)
		if err == nil && end > maxHeight {
			maxHeight = end
		}
	}
	return maxHeight
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "<no output>"
}
