package entity

import "fmt"

// Channels is the number of interleaved color components per pixel (RGB, 8-bit).
const Channels = 3

type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Frame is a packed RGB24 pixel buffer. Frames are treated as immutable once
// built; sequences share them by pointer.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint8, width*height*Channels)}
}

// SolidFrame returns a frame with every pixel set to the given color.
func SolidFrame(width, height int, r, g, b uint8) *Frame {
	f := NewFrame(width, height)
	for i := 0; i < len(f.Pix); i += Channels {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
	}
	return f
}

func (f *Frame) Resolution() Resolution {
	return Resolution{Width: f.Width, Height: f.Height}
}

func (f *Frame) Stride() int {
	return f.Width * Channels
}

// Valid reports whether the buffer length matches the declared dimensions.
func (f *Frame) Valid() bool {
	return f != nil && f.Resolution().Valid() && len(f.Pix) == f.Width*f.Height*Channels
}

func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.Width != o.Width || f.Height != o.Height || len(f.Pix) != len(o.Pix) {
		return false
	}
	for i := range f.Pix {
		if f.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Sequence is an ordered run of frames sharing a nominal resolution.
type Sequence struct {
	Frames     []*Frame
	Resolution Resolution
}

// NewSequence takes the resolution of the first frame as the nominal one.
func NewSequence(frames []*Frame) Sequence {
	seq := Sequence{Frames: frames}
	if len(frames) > 0 && frames[0] != nil {
		seq.Resolution = frames[0].Resolution()
	}
	return seq
}

func (s Sequence) Len() int {
	return len(s.Frames)
}

func (s Sequence) At(i int) *Frame {
	return s.Frames[i]
}

// Uniform reports whether every frame matches the nominal resolution.
func (s Sequence) Uniform() bool {
	for _, f := range s.Frames {
		if f == nil || f.Resolution() != s.Resolution {
			return false
		}
	}
	return true
}
