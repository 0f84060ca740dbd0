// package player drives playback of the queue head: it resolves the item to a local file through
// the caches, hands the file to a native backend and advances the queue.
package player

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// NativePlayer is the audio backend. Load and Play report success as a bool.
type NativePlayer interface {
	Load(path string) bool
	Play() bool
	Pause()
	Stop()
	SetVolume(level int)
	Position() time.Duration
	// Empty reports whether nothing is loaded or the loaded track has finished.
	Empty() bool
}

// CommandPlayer plays files by running an external program such as mpv or ffplay.
//
// Args may contain "{volume}", replaced by the current level when a track starts. Pause and
// resume are process signals, so pausing is only available on unix systems.
type CommandPlayer struct {
	command string
	args    []string
	logger  *log.Logger
	output  io.Writer

	mu       sync.Mutex
	path     string
	cmd      *exec.Cmd
	done     chan struct{}
	paused   bool
	volume   int
	started  time.Time
	pausedAt time.Time
	pausedD  time.Duration
}

// NewCommandPlayer returns a player that runs command with args followed by the file path.
func NewCommandPlayer(command string, args []string, volume int, logger *log.Logger) *CommandPlayer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CommandPlayer{
		command: command,
		args:    args,
		volume:  clampVolume(volume),
		logger:  shared.WithLogger(logger, "component", "player"),
		output:  io.Discard,
	}
}

// Load stops any running track and selects path for the next Play.
func (p *CommandPlayer) Load(path string) bool {
	if _, err := exec.LookPath(p.command); err != nil {
		p.logger.Error("player command not found", "command", p.command, "error", err)
		return false
	}

	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	return true
}

// Play starts the loaded track, or resumes it when paused.
func (p *CommandPlayer) Play() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return false
	}
	if p.cmd != nil && p.paused {
		if err := resume(p.cmd.Process); err != nil {
			p.logger.Warn("failed to resume", "error", err)
			return false
		}
		p.pausedD += time.Since(p.pausedAt)
		p.paused = false
		return true
	}
	if p.cmd != nil {
		return true
	}

	cmd := exec.Command(p.command, p.argv()...)
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	if err := cmd.Start(); err != nil {
		p.logger.Error("failed to start player", "command", p.command, "error", err)
		return false
	}

	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Debug("player exited", "error", err)
		}
		close(done)
	}()

	p.cmd = cmd
	p.done = done
	p.started = time.Now()
	p.pausedD = 0
	p.paused = false
	return true
}

// Pause suspends the running track.
func (p *CommandPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.paused || p.finishedLocked() {
		return
	}
	if err := suspend(p.cmd.Process); err != nil {
		p.logger.Warn("failed to pause", "error", err)
		return
	}
	p.paused = true
	p.pausedAt = time.Now()
}

// Stop kills the running track and unloads it.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	cmd, done, paused := p.cmd, p.done, p.paused
	p.cmd, p.done, p.path, p.paused = nil, nil, "", false
	p.mu.Unlock()

	if cmd == nil {
		return
	}
	if paused {
		resume(cmd.Process)
	}
	if err := cmd.Process.Kill(); err != nil {
		p.logger.Debug("failed to kill player", "error", err)
	}
	<-done
}

// SetVolume stores level (clamped to 0..100) for the next started track.
func (p *CommandPlayer) SetVolume(level int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = clampVolume(level)
}

// Volume returns the current level.
func (p *CommandPlayer) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Position returns the wall-clock time the track has been playing, excluding pauses.
func (p *CommandPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return 0
	}
	paused := p.pausedD
	if p.paused {
		paused += time.Since(p.pausedAt)
	}
	return time.Since(p.started) - paused
}

// Empty reports whether no track is loaded or the loaded one has exited.
func (p *CommandPlayer) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return true
	}
	return p.cmd != nil && p.finishedLocked()
}

func (p *CommandPlayer) finishedLocked() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *CommandPlayer) argv() []string {
	argv := make([]string, 0, len(p.args)+1)
	for _, a := range p.args {
		argv = append(argv, strings.ReplaceAll(a, "{volume}", strconv.Itoa(p.volume)))
	}
	return append(argv, p.path)
}

func clampVolume(level int) int {
	return min(max(level, 0), 100)
}

// Describe returns the command line used for the loaded path, for logs and errors.
func (p *CommandPlayer) Describe() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("%s %s", p.command, strings.Join(p.argv(), " "))
}
