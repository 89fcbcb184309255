// Package ui holds the describer front end as an explicit state container.
// State transitions are pure functions; View derives every control's
// enablement and visibility from State, so nothing is toggled ad hoc.
package ui

import (
	"fmt"
	"strings"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseImageLoaded
	PhaseLoading
	PhaseDescribed
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseImageLoaded:
		return "image-loaded"
	case PhaseLoading:
		return "loading"
	case PhaseDescribed:
		return "described"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Region is the element that holds focus for assistive technology.
type Region int

const (
	RegionUpload Region = iota
	RegionDescribeButton
	RegionOutput
)

const DefaultMaxWords = 25

// Image is a loaded image, already encoded as a data URL.
type Image struct {
	Name      string
	MediaType string
	Size      int64
	Width     int
	Height    int
	DataURL   string
}

// Payload is the base64 part of the data URL: everything after the first
// comma.
func (i *Image) Payload() string {
	_, payload, ok := strings.Cut(i.DataURL, ",")
	if !ok {
		return ""
	}
	return payload
}

type State struct {
	Phase        Phase
	Image        *Image
	MaxWords     int
	Description  string
	ErrorMessage string
	Speaking     bool
	Copied       bool
	LoadingImage bool
	Focus        Region
}

func Initial() State {
	return State{
		Phase:    PhaseIdle,
		MaxWords: DefaultMaxWords,
		Focus:    RegionUpload,
	}
}

func (s State) withImageLoading() State {
	s.LoadingImage = true
	return s
}

func (s State) withImage(img *Image) State {
	s.LoadingImage = false
	s.Image = img
	s.Phase = PhaseImageLoaded
	s.Description = ""
	s.ErrorMessage = ""
	s.Speaking = false
	s.Copied = false
	s.Focus = RegionDescribeButton
	return s
}

func (s State) withLoading() State {
	s.Phase = PhaseLoading
	s.ErrorMessage = ""
	return s
}

func (s State) withDescription(text string) State {
	s.Phase = PhaseDescribed
	s.Description = text
	s.ErrorMessage = ""
	s.Focus = RegionOutput
	return s
}

func (s State) withError(msg string) State {
	s.LoadingImage = false
	s.Phase = PhaseError
	s.ErrorMessage = msg
	return s
}

func (s State) withMaxWords(n int) State {
	s.MaxWords = n
	return s
}

func (s State) withSpeaking(speaking bool) State {
	s.Speaking = speaking
	return s
}

func (s State) withCopied(copied bool) State {
	s.Copied = copied
	return s
}

// dismissed hides the error panel and returns to whatever the user had
// before the failure.
func (s State) dismissed() State {
	s.ErrorMessage = ""
	switch {
	case s.Description != "":
		s.Phase = PhaseDescribed
		s.Focus = RegionOutput
	case s.Image != nil:
		s.Phase = PhaseImageLoaded
		s.Focus = RegionDescribeButton
	default:
		s.Phase = PhaseIdle
		s.Focus = RegionUpload
	}
	return s
}

func (s State) cleared() State {
	return Initial()
}

// View is what a renderer draws for a State.
type View struct {
	UploadPrompt       bool
	UploadEnabled      bool
	MaxWordsEnabled    bool
	DescribeEnabled    bool
	OutputEnabled      bool
	CopyEnabled        bool
	SpeakEnabled       bool
	StopEnabled        bool
	ClearEnabled       bool
	LoadingVisible     bool
	ErrorVisible       bool
	DescriptionVisible bool

	Output       string
	ErrorMessage string
	CopyLabel    string
	LengthLabel  string
	Focus        Region
}

// busy reports a describe or image load in flight.
func (s State) busy() bool {
	return s.Phase == PhaseLoading || s.LoadingImage
}

func (s State) View() View {
	busy := s.busy()
	hasImage := s.Image != nil
	hasOutput := s.Description != "" && !busy

	v := View{
		UploadPrompt:       !hasImage,
		UploadEnabled:      !busy,
		MaxWordsEnabled:    hasImage && !busy,
		DescribeEnabled:    hasImage && !busy,
		OutputEnabled:      hasOutput,
		CopyEnabled:        hasOutput,
		SpeakEnabled:       hasOutput && !s.Speaking,
		StopEnabled:        s.Speaking,
		ClearEnabled:       hasOutput,
		LoadingVisible:     s.Phase == PhaseLoading,
		ErrorVisible:       s.Phase == PhaseError,
		DescriptionVisible: s.Phase == PhaseDescribed,
		Output:             s.Description,
		ErrorMessage:       s.ErrorMessage,
		CopyLabel:          "Copy",
		LengthLabel:        fmt.Sprintf("Description Length: %d Words", s.MaxWords),
		Focus:              s.Focus,
	}
	if s.Copied {
		v.CopyLabel = "Copied!"
	}
	return v
}
