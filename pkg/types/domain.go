package types

import "fmt"

// Style describes a named stylization preset from the registry.
type Style struct {
	// Stable identifier for the style.
	// example: van_gogh_starry_night
	ID string `json:"id" example:"van_gogh_starry_night"`
	// Human-friendly display name.
	// example: Van Gogh - Starry Night
	Name string `json:"name" example:"Van Gogh - Starry Night"`
	// Canonical input width expected by the style.
	// example: 256
	InputWidth int `json:"input_width" example:"256"`
	// Canonical input height expected by the style.
	// example: 256
	InputHeight int `json:"input_height" example:"256"`
	// Color channels the style's model consumes (alpha is passed through).
	// example: 3
	InputChannels int `json:"input_channels" example:"3"`
	// Estimated artifact size in MB (informational only).
	// example: 2.4
	SizeMB float64 `json:"size_mb,omitempty" example:"2.4"`
	// URL of the backend artifact for this style, if any.
	// example: /models/starry_night.onnx
	URL string `json:"url,omitempty" example:"/models/starry_night.onnx"`
	// Optional description shown in UIs.
	// example: Transform with Van Gogh's swirling brushstrokes
	Description string `json:"description,omitempty" example:"Transform with Van Gogh's swirling brushstrokes"`
}

// Image is a W*H RGBA8 pixel buffer. Pix holds 4 bytes per pixel
// (R, G, B, A) in row-major order; len(Pix) must equal W*H*4.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// NewImage allocates a zeroed image of the given dimensions.
func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]byte, w*h*4)}
}

// Validate checks the buffer-length invariant. A mismatch indicates a
// programming error in the caller and is never silently recovered.
func (im *Image) Validate() error {
	if im == nil {
		return InvalidImageError{Reason: "nil image"}
	}
	if im.Width <= 0 || im.Height <= 0 {
		return InvalidImageError{Reason: fmt.Sprintf("non-positive dimensions %dx%d", im.Width, im.Height)}
	}
	if want := im.Width * im.Height * 4; len(im.Pix) != want {
		return InvalidImageError{Reason: fmt.Sprintf("buffer length %d, want %d", len(im.Pix), want)}
	}
	return nil
}

// Clone returns a deep copy. Requests never share buffers, so backends
// always stylize into a fresh copy rather than mutating the source.
func (im *Image) Clone() *Image {
	out := &Image{Width: im.Width, Height: im.Height, Pix: make([]byte, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// InvalidImageError reports a malformed image buffer. It propagates to the
// caller unchanged; the dispatcher never retries on it.
type InvalidImageError struct{ Reason string }

func (e InvalidImageError) Error() string { return "invalid image: " + e.Reason }

// IsInvalidImage reports whether err indicates a malformed image buffer.
func IsInvalidImage(err error) bool {
	_, ok := err.(InvalidImageError)
	return ok
}

// ProcessRequest carries one stylization request through the dispatcher.
// Strength is a 0-1 blend fraction; out-of-range values are clamped, not
// rejected. External percentage inputs are normalized at the HTTP boundary.
type ProcessRequest struct {
	Image    *Image
	StyleID  string
	Strength float64
}
