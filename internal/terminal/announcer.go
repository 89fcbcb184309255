package terminal

import (
	"io"
	"log"
)

// Announcer prints status messages on their own lines, where a screen
// reader following the terminal picks them up.
type Announcer struct {
	logger *log.Logger
}

func NewAnnouncer(w io.Writer) *Announcer {
	return &Announcer{logger: log.New(w, "", 0)}
}

func (a *Announcer) Announce(msg string) {
	a.logger.Println(msg)
}
