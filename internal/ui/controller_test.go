package ui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/client"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/models"
)

type fakeDescriber struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	started  chan struct{}
	release  chan struct{}

	mu   sync.Mutex
	last models.DescribeRequest

	description string
	err         error
}

func (f *fakeDescriber) Describe(ctx context.Context, req models.DescribeRequest) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.last = req
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.description, f.err
}

type fakeClipboard struct {
	err  error
	text string
}

func (f *fakeClipboard) WriteText(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

type fakeSpeaker struct {
	spoken    []Utterance
	events    []UtteranceEvents
	cancelled int
	err       error
}

func (f *fakeSpeaker) Speak(u Utterance, ev UtteranceEvents) error {
	if f.err != nil {
		return f.err
	}
	f.spoken = append(f.spoken, u)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSpeaker) Cancel() { f.cancelled++ }

type recordingAnnouncer struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAnnouncer) Announce(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
}

func (a *recordingAnnouncer) has(msg string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Contains(a.messages, msg)
}

// countingReader fails the test if anything reads it.
type countingReader struct {
	reads atomic.Int32
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads.Add(1)
	return 0, errors.New("unexpected read")
}

// gatedReader signals on its first Read and then blocks until ready is
// closed.
type gatedReader struct {
	ready  chan struct{}
	file   File
	waited bool
}

func (g *gatedReader) Read(p []byte) (int, error) {
	if !g.waited {
		g.waited = true
		g.ready <- struct{}{}
		<-g.ready
	}
	return g.file.Reader.Read(p)
}

func pngFile(t *testing.T, w, h int) File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	return File{
		Name:   "harbour.png",
		Type:   "image/png",
		Size:   int64(buf.Len()),
		Reader: &buf,
	}
}

type harness struct {
	ctrl      *Controller
	describer *fakeDescriber
	clipboard *fakeClipboard
	legacy    *fakeClipboard
	speaker   *fakeSpeaker
	announcer *recordingAnnouncer
	scheduled []func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		describer: &fakeDescriber{description: "A foggy harbour at dawn."},
		clipboard: &fakeClipboard{},
		legacy:    &fakeClipboard{},
		speaker:   &fakeSpeaker{},
		announcer: &recordingAnnouncer{},
	}
	h.ctrl = NewController(Options{
		Describer:       h.describer,
		Clipboard:       h.clipboard,
		LegacyClipboard: h.legacy,
		Speaker:         h.speaker,
		Announcer:       h.announcer,
		AfterFunc: func(d time.Duration, f func()) {
			if d != CopyFeedbackDuration {
				t.Errorf("Expected feedback delay %s, got %s", CopyFeedbackDuration, d)
			}
			h.scheduled = append(h.scheduled, f)
		},
	})
	return h
}

func (h *harness) describe(t *testing.T) {
	t.Helper()
	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if err := h.ctrl.Describe(t.Context()); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
}

func TestLoadImageRejectsOversizedFileWithoutReading(t *testing.T) {
	h := newHarness(t)
	reader := &countingReader{}

	err := h.ctrl.LoadImage(File{Name: "huge.png", Type: "image/png", Size: 25 << 20, Reader: reader})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if expected, actual := "Image too large. Please use an image smaller than 20MB.", verr.Message; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if n := reader.reads.Load(); n != 0 {
		t.Errorf("Expected the file to stay unread, got %d reads", n)
	}

	// the describe trigger stays dead, so no request can follow
	if err := h.ctrl.Describe(t.Context()); err == nil {
		t.Error("Expected describe without an image to fail")
	}
	if n := h.describer.calls.Load(); n != 0 {
		t.Errorf("Expected 0 describe calls, got %d", n)
	}

	s := h.ctrl.State()
	if expected, actual := PhaseError, s.Phase; expected != actual {
		t.Errorf("Expected phase %s, got %s", expected, actual)
	}
	if !h.announcer.has("Error: Image too large. Please use an image smaller than 20MB.") {
		t.Errorf("Expected size error announcement, got %v", h.announcer.messages)
	}
}

func TestLoadImageRejectsTypes(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		message  string
	}{
		{"not an image", "application/pdf", "Please drop a valid image file."},
		{"unsupported image", "image/bmp", "Unsupported image format. Please use JPG, PNG, GIF, or WebP."},
		{"svg", "image/svg+xml", "Unsupported image format. Please use JPG, PNG, GIF, or WebP."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			reader := &countingReader{}

			err := h.ctrl.LoadImage(File{Name: "file", Type: tt.mimeType, Size: 1024, Reader: reader})
			if err == nil || err.Error() != tt.message {
				t.Errorf("Expected %q, got %v", tt.message, err)
			}
			if reader.reads.Load() != 0 {
				t.Error("Expected the file to stay unread")
			}
			if expected, actual := tt.message, h.ctrl.State().View().ErrorMessage; expected != actual {
				t.Errorf("Expected %q, got %q", expected, actual)
			}
		})
	}
}

func TestLoadImageUndecodable(t *testing.T) {
	h := newHarness(t)

	err := h.ctrl.LoadImage(File{Name: "broken.png", Type: "image/png", Size: 4, Reader: strings.NewReader("nope")})
	if err == nil || err.Error() != "Failed to process the image file." {
		t.Errorf("Expected process error, got %v", err)
	}
	if h.ctrl.State().Image != nil {
		t.Error("Expected no image after a failed load")
	}
}

func TestLoadImage(t *testing.T) {
	h := newHarness(t)
	var states []State
	h.ctrl.onChange = func(s State) { states = append(states, s) }

	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	s := h.ctrl.State()
	if expected, actual := PhaseImageLoaded, s.Phase; expected != actual {
		t.Errorf("Expected phase %s, got %s", expected, actual)
	}
	if s.Image.Width != 4 || s.Image.Height != 3 {
		t.Errorf("Expected 4x3, got %dx%d", s.Image.Width, s.Image.Height)
	}
	if !strings.HasPrefix(s.Image.DataURL, "data:image/png;base64,") {
		t.Errorf("Unexpected data URL %q", s.Image.DataURL[:32])
	}
	if strings.Contains(s.Image.Payload(), ",") || s.Image.Payload() == "" {
		t.Errorf("Unexpected payload %q", s.Image.Payload())
	}

	v := s.View()
	if !v.DescribeEnabled || !v.MaxWordsEnabled {
		t.Errorf("Expected describe and length controls enabled, got %+v", v)
	}
	if v.CopyEnabled || v.SpeakEnabled || v.ClearEnabled {
		t.Errorf("Expected output controls disabled, got %+v", v)
	}
	if expected, actual := RegionDescribeButton, v.Focus; expected != actual {
		t.Errorf("Expected focus %d, got %d", expected, actual)
	}

	if len(states) != 2 || !states[0].LoadingImage {
		t.Errorf("Expected a loading state then a loaded state, got %d states", len(states))
	}
	if !h.announcer.has("Image uploaded successfully. Ready to describe.") {
		t.Errorf("Expected upload announcement, got %v", h.announcer.messages)
	}
}

func TestLoadImageNormalizesJPG(t *testing.T) {
	h := newHarness(t)
	f := pngFile(t, 2, 2)
	f.Type = "image/jpg"

	if err := h.ctrl.LoadImage(f); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "image/jpeg", h.ctrl.State().Image.MediaType; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
}

func TestDescribeWithoutImage(t *testing.T) {
	h := newHarness(t)

	err := h.ctrl.Describe(t.Context())
	if err == nil || err.Error() != "Please upload an image first." {
		t.Errorf("Expected no-image error, got %v", err)
	}
	if n := h.describer.calls.Load(); n != 0 {
		t.Errorf("Expected 0 describe calls, got %d", n)
	}
}

func TestDescribeTwiceSendsOneRequest(t *testing.T) {
	h := newHarness(t)
	h.describer.started = make(chan struct{}, 1)
	h.describer.release = make(chan struct{})

	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Describe(t.Context()) }()
	<-h.describer.started

	v := h.ctrl.State().View()
	if v.DescribeEnabled || !v.LoadingVisible || v.UploadEnabled {
		t.Errorf("Expected loading view with triggers disabled, got %+v", v)
	}
	if err := h.ctrl.Describe(t.Context()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if err := h.ctrl.LoadImage(pngFile(t, 2, 2)); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for upload, got %v", err)
	}

	close(h.describer.release)
	if err := <-done; err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := int32(1), h.describer.calls.Load(); expected != actual {
		t.Errorf("Expected %d describe calls, got %d", expected, actual)
	}
}

func TestDescribeSuccess(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if err := h.ctrl.SetMaxWords(40); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if err := h.ctrl.Describe(t.Context()); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	req := h.describer.last
	if expected, actual := h.ctrl.State().Image.Payload(), req.Image; expected != actual {
		t.Errorf("Expected payload to be sent without data URL prefix")
	}
	if expected, actual := "image/png", req.ImageType; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if expected, actual := models.WordCount(40), req.MaxWords; expected != actual {
		t.Errorf("Expected %d, got %d", expected, actual)
	}

	v := h.ctrl.State().View()
	if expected, actual := "A foggy harbour at dawn.", v.Output; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if !v.CopyEnabled || !v.SpeakEnabled || !v.ClearEnabled || !v.DescriptionVisible {
		t.Errorf("Expected output controls enabled, got %+v", v)
	}
	if expected, actual := RegionOutput, v.Focus; expected != actual {
		t.Errorf("Expected focus %d, got %d", expected, actual)
	}
	if expected, actual := "Description Length: 40 Words", v.LengthLabel; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	for _, msg := range []string{"Generating description...", "Description generated successfully."} {
		if !h.announcer.has(msg) {
			t.Errorf("Expected announcement %q, got %v", msg, h.announcer.messages)
		}
	}
}

func TestDescribeFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			"timeout",
			&client.NetworkError{Timeout: true, Err: context.DeadlineExceeded},
			"Request timed out. Please check your connection and try again.",
		},
		{
			"api error",
			&client.APIError{StatusCode: 429, Message: "Too many requests - please wait and try again"},
			"Failed to describe image: Too many requests - please wait and try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.describer.err = tt.err
			if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
				t.Fatalf("Unexpected error %s", err)
			}

			if err := h.ctrl.Describe(t.Context()); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}

			v := h.ctrl.State().View()
			if expected, actual := tt.message, v.ErrorMessage; expected != actual {
				t.Errorf("Expected %q, got %q", expected, actual)
			}
			if !v.ErrorVisible || v.LoadingVisible || !v.DescribeEnabled {
				t.Errorf("Expected error view with describe re-enabled, got %+v", v)
			}
			if !h.announcer.has("Error: "+tt.message) || !h.announcer.has("Failed to generate description.") {
				t.Errorf("Expected failure announcements, got %v", h.announcer.messages)
			}
		})
	}
}

func TestDescribeTimesOut(t *testing.T) {
	h := newHarness(t)
	h.describer.release = make(chan struct{})
	defer close(h.describer.release)
	h.ctrl.timeout = 20 * time.Millisecond

	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if err := h.ctrl.Describe(t.Context()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if expected, actual := "Request timed out. Please check your connection and try again.", h.ctrl.State().ErrorMessage; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
}

func TestDismissError(t *testing.T) {
	h := newHarness(t)
	h.describer.err = errors.New("boom")
	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	_ = h.ctrl.Describe(t.Context())

	h.ctrl.DismissError()

	s := h.ctrl.State()
	if expected, actual := PhaseImageLoaded, s.Phase; expected != actual {
		t.Errorf("Expected phase %s, got %s", expected, actual)
	}
	if s.View().ErrorVisible {
		t.Error("Expected error panel hidden")
	}
}

func TestClearAfterDescribe(t *testing.T) {
	h := newHarness(t)
	h.describe(t)

	if err := h.ctrl.Clear(); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	s := h.ctrl.State()
	if s.Description != "" || s.Image != nil {
		t.Errorf("Expected empty state, got %+v", s)
	}
	v := s.View()
	if v.Output != "" || v.CopyEnabled || v.SpeakEnabled || v.ClearEnabled || v.DescribeEnabled {
		t.Errorf("Expected cleared view, got %+v", v)
	}
	if !v.UploadPrompt {
		t.Error("Expected upload prompt after clear")
	}
	if expected, actual := "Description Length: 25 Words", v.LengthLabel; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if !h.announcer.has("Cleared. Ready for new image.") {
		t.Errorf("Expected clear announcement, got %v", h.announcer.messages)
	}
}

func TestClearRefusedWhileDescribing(t *testing.T) {
	h := newHarness(t)
	h.describer.started = make(chan struct{}, 1)
	h.describer.release = make(chan struct{})

	if err := h.ctrl.LoadImage(pngFile(t, 4, 3)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Describe(t.Context()) }()
	<-h.describer.started

	if err := h.ctrl.Clear(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	close(h.describer.release)
	if err := <-done; err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	if expected, actual := "A foggy harbour at dawn.", h.ctrl.State().Description; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
}

func TestRedescribeKeepsOneRequestInFlight(t *testing.T) {
	h := newHarness(t)
	h.describe(t)

	h.describer.started = make(chan struct{}, 1)
	h.describer.release = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Describe(t.Context()) }()
	<-h.describer.started

	v := h.ctrl.State().View()
	if v.ClearEnabled || v.CopyEnabled || v.SpeakEnabled {
		t.Errorf("Expected output controls disabled while loading, got %+v", v)
	}
	if err := h.ctrl.Clear(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy from clear, got %v", err)
	}
	if err := h.ctrl.LoadImage(pngFile(t, 2, 2)); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy from upload, got %v", err)
	}
	if err := h.ctrl.Describe(t.Context()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy from describe, got %v", err)
	}
	if err := h.ctrl.Copy(t.Context()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy from copy, got %v", err)
	}
	if err := h.ctrl.Speak(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy from speak, got %v", err)
	}

	close(h.describer.release)
	if err := <-done; err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := int32(1), h.describer.peak.Load(); expected != actual {
		t.Errorf("Expected peak of %d describe request in flight, got %d", expected, actual)
	}
	if expected, actual := int32(2), h.describer.calls.Load(); expected != actual {
		t.Errorf("Expected %d describe calls, got %d", expected, actual)
	}
}

func TestSupersededLoadLeavesSpeechAlone(t *testing.T) {
	h := newHarness(t)
	h.describe(t)
	_ = h.ctrl.Speak()
	h.speaker.events[0].OnStart()
	cancels := h.speaker.cancelled

	gate := &gatedReader{ready: make(chan struct{}), file: pngFile(t, 2, 2)}
	done := make(chan error, 1)
	go func() {
		f := gate.file
		f.Reader = gate
		done <- h.ctrl.LoadImage(f)
	}()
	<-gate.ready

	// the load is superseded by bumping its generation, as Clear would
	h.ctrl.commit(func(s State) (State, bool) {
		h.ctrl.loadGen++
		return s, false
	})
	close(gate.ready)
	if err := <-done; err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	if !h.ctrl.State().Speaking {
		t.Error("Expected the stale load to leave speech running")
	}
	if expected, actual := cancels, h.speaker.cancelled; expected != actual {
		t.Errorf("Expected %d cancels, got %d", expected, actual)
	}
	h.speaker.events[0].OnEnd()
	if h.ctrl.State().Speaking {
		t.Error("Expected the utterance end event to still apply")
	}
}

func TestLoadImageClearsPreviousDescription(t *testing.T) {
	h := newHarness(t)
	h.describe(t)

	if err := h.ctrl.LoadImage(pngFile(t, 2, 2)); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if s := h.ctrl.State(); s.Description != "" || s.View().CopyEnabled {
		t.Errorf("Expected stale description to be cleared, got %+v", s)
	}
}

func TestCopy(t *testing.T) {
	h := newHarness(t)
	h.describe(t)

	if err := h.ctrl.Copy(t.Context()); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "A foggy harbour at dawn.", h.clipboard.text; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if h.legacy.text != "" {
		t.Error("Expected legacy clipboard unused")
	}
	if expected, actual := "Copied!", h.ctrl.State().View().CopyLabel; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}

	if len(h.scheduled) != 1 {
		t.Fatalf("Expected 1 scheduled revert, got %d", len(h.scheduled))
	}
	h.scheduled[0]()
	if expected, actual := "Copy", h.ctrl.State().View().CopyLabel; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
}

func TestCopyFallsBackToLegacy(t *testing.T) {
	h := newHarness(t)
	h.clipboard.err = errors.New("permission denied")
	h.describe(t)

	if err := h.ctrl.Copy(t.Context()); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "A foggy harbour at dawn.", h.legacy.text; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if !h.announcer.has("Description copied to clipboard.") {
		t.Errorf("Expected copy announcement, got %v", h.announcer.messages)
	}
}

func TestCopyFails(t *testing.T) {
	h := newHarness(t)
	h.clipboard.err = errors.New("permission denied")
	h.legacy.err = errors.New("no terminal")
	h.describe(t)

	if err := h.ctrl.Copy(t.Context()); err == nil {
		t.Fatal("Expected an error")
	}
	if expected, actual := "Failed to copy to clipboard.", h.ctrl.State().ErrorMessage; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if len(h.scheduled) != 0 {
		t.Error("Expected no feedback revert to be scheduled")
	}
}

func TestCopyFeedbackRevertIgnoredAfterClear(t *testing.T) {
	h := newHarness(t)
	h.describe(t)
	if err := h.ctrl.Copy(t.Context()); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	h.ctrl.Clear()
	var changes int
	h.ctrl.onChange = func(State) { changes++ }
	h.scheduled[0]()

	if changes != 0 {
		t.Errorf("Expected stale revert to be ignored, got %d changes", changes)
	}
}

func TestSpeak(t *testing.T) {
	h := newHarness(t)
	h.describe(t)

	if err := h.ctrl.Speak(); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if len(h.speaker.spoken) != 1 {
		t.Fatalf("Expected 1 utterance, got %d", len(h.speaker.spoken))
	}
	u := h.speaker.spoken[0]
	if u.Text != "A foggy harbour at dawn." || u.Rate != SpeechRate || u.Pitch != SpeechPitch || u.Volume != SpeechVolume {
		t.Errorf("Unexpected utterance %+v", u)
	}

	ev := h.speaker.events[0]
	ev.OnStart()
	v := h.ctrl.State().View()
	if v.SpeakEnabled || !v.StopEnabled {
		t.Errorf("Expected speak disabled and stop enabled, got %+v", v)
	}

	ev.OnEnd()
	v = h.ctrl.State().View()
	if !v.SpeakEnabled || v.StopEnabled {
		t.Errorf("Expected speak enabled and stop disabled, got %+v", v)
	}
	for _, msg := range []string{"Speaking description.", "Finished speaking."} {
		if !h.announcer.has(msg) {
			t.Errorf("Expected announcement %q, got %v", msg, h.announcer.messages)
		}
	}
}

func TestSpeakError(t *testing.T) {
	h := newHarness(t)
	h.describe(t)
	_ = h.ctrl.Speak()

	ev := h.speaker.events[0]
	ev.OnStart()
	ev.OnError(errors.New("audio device busy"))

	if h.ctrl.State().Speaking {
		t.Error("Expected speaking to stop after an error")
	}
	if !h.announcer.has("Speech error occurred.") {
		t.Errorf("Expected speech error announcement, got %v", h.announcer.messages)
	}
}

func TestStaleUtteranceEventsIgnored(t *testing.T) {
	h := newHarness(t)
	h.describe(t)
	_ = h.ctrl.Speak()
	first := h.speaker.events[0]
	first.OnStart()

	h.ctrl.StopSpeaking()
	if h.ctrl.State().Speaking {
		t.Fatal("Expected speaking to stop")
	}

	// the cancelled utterance reports late; it must not flip state back
	first.OnStart()
	if h.ctrl.State().Speaking {
		t.Error("Expected stale start event to be ignored")
	}

	_ = h.ctrl.Speak()
	second := h.speaker.events[1]
	second.OnStart()
	first.OnEnd()
	if !h.ctrl.State().Speaking {
		t.Error("Expected stale end event to leave the new utterance speaking")
	}
	if h.speaker.cancelled < 2 {
		t.Errorf("Expected earlier speech to be cancelled, got %d cancels", h.speaker.cancelled)
	}
}

func TestSpeakWithoutDescription(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Speak(); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if len(h.speaker.spoken) != 0 {
		t.Error("Expected nothing spoken")
	}
}

func TestSetMaxWordsDisabledWithoutImage(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.SetMaxWords(40); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if err := h.ctrl.SetMaxWords(0); err == nil {
		t.Error("Expected a validation error")
	}
}
