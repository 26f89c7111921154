// Package narrative integrates a local language-model inference process (or
// a remote OpenAI-compatible endpoint) to produce report narrative sections:
// executive summaries, per-finding action plans, and discussion-thread
// closing summaries.
package narrative

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/AitchEm-bot/audit-reports/internal/common"
)

// DefaultTimeout bounds single-shot inference calls. Streaming calls are
// bounded by the caller's connection lifetime instead.
const DefaultTimeout = 30 * time.Second

// Client is the capability surface the rest of the pipeline depends on. It
// never retries; callers decide whether a failure degrades to a placeholder
// or aborts the request.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	InvokeStreaming(ctx context.Context, prompt string) (<-chan string, <-chan error)
	Name() string
}

// ExecConfig describes the local inference process.
type ExecConfig struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// ExecClient spawns one local inference process per call, writing the prompt
// to stdin and reading sanitized text from stdout.
type ExecClient struct {
	cfg ExecConfig
}

// NewExecClient constructs a subprocess-backed client.
func NewExecClient(cfg ExecConfig) *ExecClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ExecClient{cfg: cfg}
}

func (c *ExecClient) Name() string { return "exec:" + c.cfg.Command }

// command builds the inference process bound to ctx. The process runs in its
// own group and cancellation signals the whole group: launchers like ollama
// fork workers that inherit our stdout pipe, and killing only the direct
// child would leave the tree running and the pipe open. WaitDelay bounds how
// long Wait can stay blocked on the pipe after the kill.
func (c *ExecClient) command(ctx context.Context, prompt string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	return cmd
}

// Invoke runs the inference process to completion under the configured
// wall-clock timeout. On timeout the process is killed and ErrTimeout is
// returned; spawn or exit failures map to ErrUnavailable.
func (c *ExecClient) Invoke(ctx context.Context, prompt string) (string, error) {
	logger := common.Logger()
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := c.command(runCtx, prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		logger.Warn("narrative: inference timed out", "command", c.cfg.Command, "timeout", c.cfg.Timeout)
		return "", fmt.Errorf("narrative: %s exceeded %s: %w", c.cfg.Command, c.cfg.Timeout, ErrTimeout)
	}
	if err != nil {
		logger.Warn("narrative: inference failed", "command", c.cfg.Command, "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return "", fmt.Errorf("narrative: %s: %v: %w", c.cfg.Command, err, ErrUnavailable)
	}
	logger.Debug("narrative: inference complete", "command", c.cfg.Command, "dur", time.Since(start), "bytes", stdout.Len())
	return strings.TrimSpace(Sanitize(stdout.String())), nil
}

// InvokeStreaming spawns the inference process and forwards sanitized stdout
// chunks as they arrive. The subprocess is bound to ctx: cancellation kills
// it, so tearing down the consumer tears down the process. The error channel
// receives at most one value and both channels close when the process exits.
func (c *ExecClient) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	logger := common.Logger()
	chunks := make(chan string, 16)
	errc := make(chan error, 1)

	cmd := c.command(ctx, prompt)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		errc <- fmt.Errorf("narrative: stdout pipe: %v: %w", err, ErrUnavailable)
		close(chunks)
		close(errc)
		return chunks, errc
	}
	if err := cmd.Start(); err != nil {
		errc <- fmt.Errorf("narrative: start %s: %v: %w", c.cfg.Command, err, ErrUnavailable)
		close(chunks)
		close(errc)
		return chunks, errc
	}
	logger.Debug("narrative: streaming inference started", "command", c.cfg.Command, "pid", cmd.Process.Pid)

	go func() {
		defer close(chunks)
		defer close(errc)
		send := func(raw []byte) {
			if text := Sanitize(string(raw)); text != "" {
				select {
				case chunks <- text:
				case <-ctx.Done():
				}
			}
		}
		buf := make([]byte, 512)
		var carry []byte
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				// An escape sequence can straddle a read boundary; hold
				// the dangling tail until the next read completes it.
				emit, rest := SplitIncomplete(append(carry, buf[:n]...))
				carry = append([]byte(nil), rest...)
				send(emit)
			}
			if readErr != nil {
				break
			}
		}
		send(carry)
		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			logger.Debug("narrative: streaming inference cancelled", "command", c.cfg.Command)
			errc <- ctx.Err()
			return
		}
		if waitErr != nil {
			logger.Warn("narrative: streaming inference failed", "command", c.cfg.Command, "error", waitErr)
			errc <- fmt.Errorf("narrative: %s: %v: %w", c.cfg.Command, waitErr, ErrUnavailable)
		}
	}()
	return chunks, errc
}

// NewClient selects the narrative backend from the environment: a remote
// OpenAI-compatible endpoint when OPENAI_API_KEY is set, otherwise the local
// inference process named by NARRATIVE_COMMAND.
func NewClient() Client {
	logger := common.Logger()
	if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
		logger.Info("narrative: OpenAI backend selected")
		return newOpenAIClient(apiKey)
	}
	cfg := ExecConfig{
		Command: "ollama",
		Args:    []string{"run", defaultModel()},
		Timeout: DefaultTimeout,
	}
	if cmd := strings.TrimSpace(os.Getenv("NARRATIVE_COMMAND")); cmd != "" {
		parts := strings.Fields(cmd)
		cfg.Command = parts[0]
		cfg.Args = parts[1:]
	}
	if timeout := strings.TrimSpace(os.Getenv("NARRATIVE_TIMEOUT")); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil && parsed > 0 {
			cfg.Timeout = parsed
		} else {
			logger.Warn("narrative: invalid NARRATIVE_TIMEOUT, using default", "value", timeout)
		}
	}
	logger.Info("narrative: local inference backend selected", "command", cfg.Command)
	return NewExecClient(cfg)
}

func defaultModel() string {
	if model := strings.TrimSpace(os.Getenv("NARRATIVE_MODEL")); model != "" {
		return model
	}
	return "llama3"
}
