package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Tier is one way of getting the user's attention. Tiers are tried in order
// until one delivers.
type Tier interface {
	Name() string
	Available() bool
	// Audible tiers are skipped while the session is muted.
	Audible() bool
	Alert(ctx context.Context) error
}

// Runner executes an external command, feeding stdin when non-nil.
type Runner func(ctx context.Context, argv []string, stdin io.Reader) error

// ExecRunner runs argv with os/exec and waits for it.
func ExecRunner(ctx context.Context, argv []string, stdin io.Reader) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	return cmd.Run()
}

func commandExists(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	_, err := exec.LookPath(argv[0])
	return err == nil
}

// BufferTier keeps the sound decoded in memory and pipes it to a player that
// reads from stdin.
type BufferTier struct {
	data    []byte
	command []string
	run     Runner
}

// NewBufferTier loads file once. A missing file leaves the tier unavailable.
func NewBufferTier(file string, command []string, run Runner) *BufferTier {
	var data []byte
	if file != "" {
		data, _ = os.ReadFile(file)
	}
	if run == nil {
		run = ExecRunner
	}
	return &BufferTier{data: data, command: command, run: run}
}

func (t *BufferTier) Name() string  { return "buffer" }
func (t *BufferTier) Audible() bool { return true }

func (t *BufferTier) Available() bool {
	return len(t.data) > 0 && commandExists(t.command)
}

func (t *BufferTier) Alert(ctx context.Context) error {
	return t.run(ctx, t.command, bytes.NewReader(t.data))
}

// OneShotTier spawns a player for the sound file on every alert.
type OneShotTier struct {
	file    string
	command []string
	run     Runner
}

// NewOneShotTier builds the tier.
func NewOneShotTier(file string, command []string, run Runner) *OneShotTier {
	if run == nil {
		run = ExecRunner
	}
	return &OneShotTier{file: file, command: command, run: run}
}

func (t *OneShotTier) Name() string  { return "oneshot" }
func (t *OneShotTier) Audible() bool { return true }

func (t *OneShotTier) Available() bool {
	if t.file == "" || !commandExists(t.command) {
		return false
	}
	_, err := os.Stat(t.file)
	return err == nil
}

func (t *OneShotTier) Alert(ctx context.Context) error {
	argv := append(append([]string{}, t.command...), t.file)
	return t.run(ctx, argv, nil)
}

// FlashTier posts a visual flash on the board. It is always available.
type FlashTier struct {
	board *Board
}

// NewFlashTier builds the tier.
func NewFlashTier(board *Board) *FlashTier {
	return &FlashTier{board: board}
}

func (t *FlashTier) Name() string    { return "flash" }
func (t *FlashTier) Audible() bool   { return false }
func (t *FlashTier) Available() bool { return t.board != nil }

func (t *FlashTier) Alert(context.Context) error {
	t.board.AddFlash()
	return nil
}
