package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/client"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/models"
)

const (
	DescribeTimeout      = client.DefaultTimeout
	CopyFeedbackDuration = 3000 * time.Millisecond

	SpeechRate   = 0.9
	SpeechPitch  = 1.0
	SpeechVolume = 1.0
)

// ErrBusy is returned when a trigger is used while its control is disabled.
var ErrBusy = errors.New("another operation is in progress")

// Describer sends an image to the describe proxy. *client.Client implements it.
type Describer interface {
	Describe(ctx context.Context, req models.DescribeRequest) (string, error)
}

type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

type Utterance struct {
	Text   string
	Rate   float64
	Pitch  float64
	Volume float64
}

// UtteranceEvents are invoked by the Speaker, possibly from another
// goroutine and possibly before Speak returns.
type UtteranceEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

type Speaker interface {
	Speak(u Utterance, ev UtteranceEvents) error
	Cancel()
}

// Announcer relays short messages to assistive technology.
type Announcer interface {
	Announce(msg string)
}

type Options struct {
	Describer       Describer
	Clipboard       Clipboard
	LegacyClipboard Clipboard // tried when Clipboard fails; may be nil
	Speaker         Speaker
	Announcer       Announcer // may be nil

	// OnChange receives every new State after it is committed.
	OnChange func(State)

	// Timeout bounds each describe call. Zero means DescribeTimeout.
	Timeout time.Duration

	// AfterFunc schedules f after d. Zero means time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
}

type Controller struct {
	mu    sync.Mutex
	state State

	// generations let late callbacks detect that Clear or a newer
	// operation superseded them
	loadGen      uint64
	describeGen  uint64
	utteranceGen uint64
	copyGen      uint64

	describer Describer
	clipboard Clipboard
	legacy    Clipboard
	speaker   Speaker
	announcer Announcer
	onChange  func(State)
	timeout   time.Duration
	afterFunc func(time.Duration, func())
}

func NewController(opts Options) *Controller {
	c := &Controller{
		state:     Initial(),
		describer: opts.Describer,
		clipboard: opts.Clipboard,
		legacy:    opts.LegacyClipboard,
		speaker:   opts.Speaker,
		announcer: opts.Announcer,
		onChange:  opts.OnChange,
		timeout:   opts.Timeout,
		afterFunc: opts.AfterFunc,
	}
	if c.timeout <= 0 {
		c.timeout = DescribeTimeout
	}
	if c.afterFunc == nil {
		c.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// commit applies fn under the lock and publishes the result. fn returns
// false to leave the state untouched.
func (c *Controller) commit(fn func(s State) (State, bool)) bool {
	c.mu.Lock()
	next, ok := fn(c.state)
	if ok {
		c.state = next
	}
	c.mu.Unlock()

	if ok && c.onChange != nil {
		c.onChange(next)
	}
	return ok
}

func (c *Controller) announce(msg string) {
	if c.announcer != nil {
		c.announcer.Announce(msg)
	}
}

func (c *Controller) showError(msg string) {
	c.commit(func(s State) (State, bool) { return s.withError(msg), true })
	c.announce("Error: " + msg)
}

// Start announces readiness; call it once the UI is on screen.
func (c *Controller) Start() {
	c.announce("The Describer is ready. Upload an image to begin describing it for accessibility.")
}

// LoadImage validates f, reads it and makes it the current image. Rejected
// files never reach the network.
func (c *Controller) LoadImage(f File) error {
	var (
		gen  uint64
		verr error
	)
	started := c.commit(func(s State) (State, bool) {
		if !s.View().UploadEnabled {
			return s, false
		}
		if err := validate(f); err != nil {
			verr = err
			return s.withError(err.Error()), true
		}
		c.loadGen++
		gen = c.loadGen
		return s.withImageLoading(), true
	})
	if verr != nil {
		c.announce("Error: " + verr.Error())
		return verr
	}
	if !started {
		return ErrBusy
	}

	img, err := readImage(f)
	if err != nil {
		if c.commit(func(s State) (State, bool) {
			if gen != c.loadGen {
				return s, false
			}
			return s.withError(err.Error()), true
		}) {
			c.announce("Error: " + err.Error())
		}
		return err
	}

	current := c.commit(func(s State) (State, bool) {
		if gen != c.loadGen {
			return s, false
		}
		c.utteranceGen++
		c.copyGen++
		return s.withImage(img), true
	})
	if !current {
		return nil
	}
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.announce("Image uploaded successfully. Ready to describe.")
	return nil
}

// SetMaxWords adjusts the requested description length. The control is
// only live while an image is loaded and nothing is in flight.
func (c *Controller) SetMaxWords(n int) error {
	if n <= 0 {
		return &ValidationError{Message: "Description length must be positive."}
	}
	ok := c.commit(func(s State) (State, bool) {
		if !s.View().MaxWordsEnabled {
			return s, false
		}
		return s.withMaxWords(n), true
	})
	if !ok {
		return ErrBusy
	}
	return nil
}

// Describe sends the current image to the proxy and blocks until the
// description arrives, the call fails, or the timeout aborts it. A second
// call while one is in flight returns ErrBusy without a request.
func (c *Controller) Describe(ctx context.Context) error {
	var (
		req     models.DescribeRequest
		gen     uint64
		noImage bool
	)
	started := c.commit(func(s State) (State, bool) {
		if s.busy() {
			return s, false
		}
		if s.Image == nil {
			noImage = true
			return s.withError(msgNoImage), true
		}
		c.describeGen++
		gen = c.describeGen
		req = models.DescribeRequest{
			Image:     s.Image.Payload(),
			ImageType: s.Image.MediaType,
			MaxWords:  models.WordCount(s.MaxWords),
		}
		return s.withLoading(), true
	})
	if noImage {
		c.announce("Error: " + msgNoImage)
		return &ValidationError{Message: msgNoImage}
	}
	if !started {
		return ErrBusy
	}

	c.announce("Generating description...")

	var (
		description string
		err         error
	)
	if req.Image == "" {
		err = &ValidationError{Message: msgInvalidPayload}
	} else {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		description, err = c.describer.Describe(callCtx, req)
		cancel()
	}

	current := c.commit(func(s State) (State, bool) {
		if gen != c.describeGen {
			return s, false
		}
		if err != nil {
			return s.withError(describeErrorMessage(err)), true
		}
		return s.withDescription(description), true
	})
	if !current {
		return err
	}

	if err != nil {
		c.announce("Error: " + describeErrorMessage(err))
		c.announce("Failed to generate description.")
		return err
	}
	c.announce("Description generated successfully.")
	return nil
}

func describeErrorMessage(err error) string {
	var netErr *client.NetworkError
	if (errors.As(err, &netErr) && netErr.Timeout) || errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Please check your connection and try again."
	}
	return "Failed to describe image: " + err.Error()
}

// Copy writes the description to the clipboard, falling back to the legacy
// mechanism, and flags the copy control for CopyFeedbackDuration.
func (c *Controller) Copy(ctx context.Context) error {
	s := c.State()
	if s.busy() {
		return ErrBusy
	}
	text := s.Description
	if text == "" {
		c.announce("No description to copy.")
		return nil
	}

	err := errors.New("clipboard unavailable")
	if c.clipboard != nil {
		err = c.clipboard.WriteText(ctx, text)
	}
	if err != nil && c.legacy != nil {
		err = c.legacy.WriteText(ctx, text)
	}
	if err != nil {
		c.showError("Failed to copy to clipboard.")
		return err
	}

	var gen uint64
	c.commit(func(s State) (State, bool) {
		c.copyGen++
		gen = c.copyGen
		return s.withCopied(true), true
	})
	c.announce("Description copied to clipboard.")

	c.afterFunc(CopyFeedbackDuration, func() {
		c.commit(func(s State) (State, bool) {
			if gen != c.copyGen || !s.Copied {
				return s, false
			}
			return s.withCopied(false), true
		})
	})
	return nil
}

// Speak reads the description aloud, cancelling any speech in progress.
func (c *Controller) Speak() error {
	s := c.State()
	if s.busy() {
		return ErrBusy
	}
	text := s.Description
	if text == "" {
		c.announce("No description to speak.")
		return nil
	}
	if c.speaker == nil {
		c.announce("Speech error occurred.")
		return errors.New("speech synthesis unavailable")
	}

	c.speaker.Cancel()

	c.mu.Lock()
	c.utteranceGen++
	gen := c.utteranceGen
	c.mu.Unlock()

	events := UtteranceEvents{
		OnStart: func() {
			if c.setSpeaking(gen, true) {
				c.announce("Speaking description.")
			}
		},
		OnEnd: func() {
			if c.setSpeaking(gen, false) {
				c.announce("Finished speaking.")
			}
		},
		OnError: func(error) {
			if c.setSpeaking(gen, false) {
				c.announce("Speech error occurred.")
			}
		},
	}

	err := c.speaker.Speak(Utterance{
		Text:   text,
		Rate:   SpeechRate,
		Pitch:  SpeechPitch,
		Volume: SpeechVolume,
	}, events)
	if err != nil {
		events.OnError(err)
		return err
	}
	return nil
}

// setSpeaking applies an utterance event unless a newer utterance, Stop or
// Clear has superseded it.
func (c *Controller) setSpeaking(gen uint64, speaking bool) bool {
	return c.commit(func(s State) (State, bool) {
		if gen != c.utteranceGen {
			return s, false
		}
		return s.withSpeaking(speaking), true
	})
}

func (c *Controller) StopSpeaking() {
	c.stopSpeech()
	c.announce("Speech stopped.")
}

func (c *Controller) stopSpeech() {
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.commit(func(s State) (State, bool) {
		c.utteranceGen++
		if !s.Speaking {
			return s, false
		}
		return s.withSpeaking(false), true
	})
}

func (c *Controller) DismissError() {
	c.commit(func(s State) (State, bool) {
		if s.Phase != PhaseError {
			return s, false
		}
		return s.dismissed(), true
	})
}

// Clear drops the image and description and returns to the idle state.
// It is refused while a describe or image load is in flight.
func (c *Controller) Clear() error {
	ok := c.commit(func(s State) (State, bool) {
		if s.busy() {
			return s, false
		}
		c.loadGen++
		c.describeGen++
		c.utteranceGen++
		c.copyGen++
		return s.cleared(), true
	})
	if !ok {
		return ErrBusy
	}
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.announce("Cleared. Ready for new image.")
	return nil
}
