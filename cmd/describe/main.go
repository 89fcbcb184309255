// Command describe asks a running describer server for an accessibility
// description of one image, then optionally copies it or reads it aloud.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/client"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/terminal"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/ui"
)

var (
	serverURL = flag.String("server", envOr("DESCRIBER_URL", "http://localhost:8080"), "Address of the describer server")
	maxWords  = flag.Int("words", ui.DefaultMaxWords, "Approximate description length in words")
	copyOut   = flag.Bool("copy", false, "Copy the description to the clipboard")
	speak     = flag.Bool("speak", false, "Read the description aloud")
	quiet     = flag.Bool("quiet", false, "Do not print status announcements")
)

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0)); err != nil {
		log.SetFlags(0)
		log.Fatal(err)
	}
}

func run(ctx context.Context, path string) error {
	var announcer ui.Announcer = terminal.NewAnnouncer(os.Stderr)
	if *quiet {
		announcer = nil
	}

	opts := ui.Options{
		Describer:       client.New(*serverURL),
		LegacyClipboard: terminal.OSC52{W: os.Stderr},
		Announcer:       announcer,
	}
	if clip, err := terminal.NewClipboard(); err == nil {
		opts.Clipboard = clip
	}
	if *speak {
		speaker, err := terminal.NewSpeaker()
		if err != nil {
			return err
		}
		opts.Speaker = speaker
	}

	// closed when an utterance that started has stopped
	spoken := make(chan struct{})
	var speaking, finished atomic.Bool
	opts.OnChange = func(s ui.State) {
		if speaking.Swap(s.Speaking) && !s.Speaking && !finished.Swap(true) {
			close(spoken)
		}
	}

	ctrl := ui.NewController(opts)
	ctrl.Start()

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	f, err := imageFile(file)
	if err != nil {
		return err
	}

	if err := ctrl.LoadImage(f); err != nil {
		return err
	}
	if *maxWords != ui.DefaultMaxWords {
		if err := ctrl.SetMaxWords(*maxWords); err != nil {
			return err
		}
	}
	if err := ctrl.Describe(ctx); err != nil {
		return errors.New(ctrl.State().ErrorMessage)
	}

	fmt.Println(ctrl.State().Description)

	if *copyOut {
		if err := ctrl.Copy(ctx); err != nil {
			return err
		}
	}
	if *speak {
		if err := ctrl.Speak(); err != nil {
			return err
		}
		select {
		case <-spoken:
		case <-ctx.Done():
			ctrl.StopSpeaking()
		}
	}
	return nil
}

// imageFile reports file the way a browser would: the type comes from the
// extension, or from sniffing when the extension is unknown.
func imageFile(file *os.File) (ui.File, error) {
	info, err := file.Stat()
	if err != nil {
		return ui.File{}, err
	}

	mediaType, ok := extensionTypes[strings.ToLower(filepath.Ext(file.Name()))]
	if !ok {
		head := make([]byte, 512)
		n, _ := file.Read(head)
		mediaType = http.DetectContentType(head[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return ui.File{}, err
		}
	}

	return ui.File{
		Name:   filepath.Base(file.Name()),
		Type:   mediaType,
		Size:   info.Size(),
		Reader: file,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
