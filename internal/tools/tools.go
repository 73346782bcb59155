// Package tools defines the adapter contract that every reconnaissance
// tool wrapper implements, and the registry the orchestrator and rules
// engine use to look adapters up by name, category, or asset affinity.
package tools

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

// Category groups adapters by the kind of reconnaissance they perform.
type Category string

const (
	CategoryDomain    Category = "domain"
	CategorySubdomain Category = "subdomain"
	CategoryHTTP      Category = "http"
	CategoryPort      Category = "port"
	CategoryVuln      Category = "vuln"
)

// Config describes an adapter's identity and its place in the asset
// dependency graph: which asset types it needs (Consumes) and which it
// produces (Produces), consulted by the Registry's ForAssetType and
// Producers lookups.
type Config struct {
	Name     string
	Binary   string
	Category Category
	Consumes []string
	Produces []string
	Timeout  time.Duration
}

// Options carries per-invocation scan parameters down to BuildCommand,
// independent of the target string itself.
type Options struct {
	Scope      []string
	Exclude    []string
	PassiveOnly bool
	Stealth    bool
}

// Result is what a single parse pass (full or partial) yields.
type Result struct {
	Success  bool
	Assets   []*scan.Asset
	Findings []*scan.Finding
	Progress float64
	Error    string
}

// Adapter wraps a single external reconnaissance tool. BuildCommand must
// be pure and deterministic: same target and options always produce the
// same argv. ParseOutput parses a complete buffer; ParsePartial parses
// whatever prefix of stdout has arrived so far and is called repeatedly
// as output streams in — for line-oriented tools it commonly just
// re-runs ParseOutput over the accumulated buffer.
type Adapter interface {
	Config() Config
	IsAvailable() bool
	BuildCommand(target string, opts Options) []string
	ParseOutput(stdout []byte) Result
	ParsePartial(accum []byte) Result
	Execute(ctx context.Context, target string, opts Options) <-chan Result
}

// BaseAdapter supplies IsAvailable and Config for adapters whose
// command is a plain argv executed to completion or killed on timeout —
// every adapter in this package embeds it and implements BuildCommand,
// ParseOutput, ParsePartial, and an Execute that delegates to the
// package-level Execute.
type BaseAdapter struct {
	Cfg Config
}

// IsAvailable reports whether the adapter's binary is on PATH.
func (b BaseAdapter) IsAvailable() bool {
	_, err := exec.LookPath(b.Cfg.Binary)
	return err == nil
}

// Config returns the adapter's static configuration.
func (b BaseAdapter) Config() Config {
	return b.Cfg
}

// defaultReadLineTimeout bounds how long Execute waits for each line
// when the adapter's own Cfg.Timeout is unset.
const defaultReadLineTimeout = 30 * time.Second

// Execute runs the adapter's command and streams a Result after every
// line the tool writes to stdout that yields data, followed by one final
// Result from the complete buffer once the process exits. Cfg.Timeout
// bounds the gap between successive reads, not the command's total
// runtime — a tool that keeps producing output is never killed for
// running long, only for going quiet. The process is killed, and a
// failed timeout Result sent, if no output arrives within that gap or if
// ctx is done first.
func Execute(ctx context.Context, a Adapter, target string, opts Options) <-chan Result {
	out := make(chan Result)
	cfg := a.Config()

	go func() {
		defer close(out)

		lineTimeout := cfg.Timeout
		if lineTimeout <= 0 {
			lineTimeout = defaultReadLineTimeout
		}

		argv := a.BuildCommand(target, opts)
		if len(argv) == 0 {
			out <- Result{Success: false, Error: "adapter produced an empty command"}
			return
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			out <- Result{Success: false, Error: err.Error()}
			return
		}
		var stderr []byte
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			out <- Result{Success: false, Error: err.Error()}
			return
		}

		if err := cmd.Start(); err != nil {
			out <- Result{Success: false, Error: err.Error()}
			return
		}

		stderrDone := make(chan struct{})
		go func() {
			defer close(stderrDone)
			buf := make([]byte, 4096)
			for {
				n, err := stderrPipe.Read(buf)
				if n > 0 {
					stderr = append(stderr, buf[:n]...)
				}
				if err != nil {
					return
				}
			}
		}()

		var accum []byte
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		lines := make(chan []byte)
		scanDone := make(chan error, 1)
		go func() {
			for scanner.Scan() {
				line := append([]byte(nil), scanner.Bytes()...)
				lines <- line
			}
			scanDone <- scanner.Err()
			close(lines)
		}()

	readLoop:
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					break readLoop
				}
				accum = append(accum, line...)
				accum = append(accum, '\n')
				if partial := a.ParsePartial(accum); partial.Success && (len(partial.Assets) > 0 || len(partial.Findings) > 0) {
					out <- partial
				}
			case <-time.After(lineTimeout):
				cmd.Process.Kill()
				<-stderrDone
				cmd.Wait()
				out <- Result{Success: false, Error: fmt.Sprintf("timeout after %.0fs", lineTimeout.Seconds())}
				return
			case <-ctx.Done():
				cmd.Process.Kill()
				<-stderrDone
				cmd.Wait()
				out <- Result{Success: false, Error: fmt.Sprintf("timeout after %.0fs", lineTimeout.Seconds())}
				return
			}
		}

		<-stderrDone
		waitErr := cmd.Wait()

		result := a.ParseOutput(accum)
		if waitErr != nil && !result.Success {
			result.Error = string(stderr)
			if result.Error == "" {
				result.Error = waitErr.Error()
			}
		}
		out <- result
	}()

	return out
}
