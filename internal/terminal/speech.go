package terminal

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/ui"
)

// baseWordsPerMinute is the synthesizers' normal speaking rate; Utterance.Rate
// scales it.
const baseWordsPerMinute = 175

type command struct {
	name string
	args []string
}

var speechCommands = []command{
	{name: "say"},
	{name: "espeak-ng", args: []string{"--stdin"}},
	{name: "espeak", args: []string{"--stdin"}},
}

// Speaker reads utterances aloud with say(1) or espeak. One utterance plays
// at a time; Cancel kills it.
type Speaker struct {
	cmd command

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSpeaker() (*Speaker, error) {
	cmd, err := lookup(speechCommands, exec.LookPath)
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	return &Speaker{cmd: cmd}, nil
}

// Speak starts the synthesizer and returns; events fire from a goroutine.
// A cancelled utterance reports nothing.
func (s *Speaker) Speak(u ui.Utterance, ev ui.UtteranceEvents) error {
	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, s.cmd.name, speechArgs(s.cmd, u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%s failed to start: %w", s.cmd.name, err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		if ev.OnStart != nil {
			ev.OnStart()
		}
		err := cmd.Wait()
		if ctx.Err() != nil {
			return
		}
		cancel()

		switch {
		case err != nil && ev.OnError != nil:
			ev.OnError(err)
		case err == nil && ev.OnEnd != nil:
			ev.OnEnd()
		}
	}()
	return nil
}

func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func speechArgs(c command, u ui.Utterance) []string {
	wpm := strconv.Itoa(int(math.Round(baseWordsPerMinute * u.Rate)))
	args := append([]string(nil), c.args...)

	if filepath.Base(c.name) == "say" {
		return append(args, "-r", wpm)
	}
	// espeak: pitch 0-99 with 50 normal, amplitude 0-200 with 100 normal
	return append(args,
		"-s", wpm,
		"-p", strconv.Itoa(clamp(int(math.Round(50*u.Pitch)), 0, 99)),
		"-a", strconv.Itoa(clamp(int(math.Round(100*u.Volume)), 0, 200)),
	)
}

func lookup(candidates []command, lookPath func(string) (string, error)) (command, error) {
	for _, c := range candidates {
		if path, err := lookPath(c.name); err == nil {
			c.name = path
			return c, nil
		}
	}
	return command{}, ErrNoTool
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
