// Package terminal implements the ui platform interfaces for a command-line
// session: system clipboard tools, OSC 52, speech synthesizers and a
// stderr announcer.
package terminal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
)

// ErrNoTool is returned when none of the known helper programs is on PATH.
var ErrNoTool = errors.New("no supported helper program found")

// Clipboard writes to the system clipboard through pbcopy, wl-copy, xclip
// or xsel, whichever is installed.
type Clipboard struct{}

func NewClipboard() (*Clipboard, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("clipboard: %w", ErrNoTool)
	}
	return &Clipboard{}, nil
}

func (c *Clipboard) WriteText(_ context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// OSC52 asks the terminal emulator to set the clipboard with an OSC 52
// escape sequence. It works over SSH but the terminal may ignore it.
type OSC52 struct {
	W io.Writer
}

func (o OSC52) WriteText(_ context.Context, text string) error {
	if o.W == nil {
		return errors.New("osc52: no terminal")
	}
	_, err := fmt.Fprintf(o.W, "\x1b]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
	return err
}
