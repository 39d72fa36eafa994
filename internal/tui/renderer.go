package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"slices"
	"sync"

	"github.com/kennan/folio/internal/tour"
)

var (
	// ErrNoHotspot is returned when activating a hotspot that is not placed.
	ErrNoHotspot = errors.New("no such hotspot")
	// ErrClosed is returned by a renderer after Close.
	ErrClosed = errors.New("renderer closed")
)

// Fetcher downloads an image by URL.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Frame describes a panorama that was successfully loaded.
type Frame struct {
	URL    string
	Format string
	Width  int
	Height int
	Size   int
}

// Equirectangular reports whether the image has the 2:1 aspect of a full
// 360° panorama.
func (f Frame) Equirectangular() bool {
	return f.Height > 0 && f.Width == 2*f.Height
}

// ImageRenderer is a tour.Renderer for terminals. It cannot draw the
// panorama; it downloads the image, checks that it decodes and keeps its
// dimensions for display.
type ImageRenderer struct {
	fetch Fetcher

	mu       sync.Mutex
	frames   map[string]Frame
	markers  []tour.Marker
	activate func(tour.Marker)
	closed   bool
}

// NewImageRenderer returns a renderer downloading images with f.
func NewImageRenderer(f Fetcher) *ImageRenderer {
	return &ImageRenderer{fetch: f, frames: map[string]Frame{}}
}

// Render implements tour.Renderer.
func (r *ImageRenderer) Render(ctx context.Context, imageURL string) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := r.fetch.Fetch(ctx, imageURL)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", imageURL, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", imageURL, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[imageURL] = Frame{URL: imageURL, Format: format, Width: cfg.Width, Height: cfg.Height, Size: len(data)}
	return nil
}

// PlaceMarkers implements tour.Renderer.
func (r *ImageRenderer) PlaceMarkers(markers []tour.Marker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = slices.Clone(markers)
}

// OnMarkerActivated implements tour.Renderer.
func (r *ImageRenderer) OnMarkerActivated(fn func(tour.Marker)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activate = fn
}

// Close implements tour.Renderer.
func (r *ImageRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.markers = nil
	return nil
}

// Frame returns the loaded image at imageURL.
func (r *ImageRenderer) Frame(imageURL string) (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.frames[imageURL]
	return f, ok
}

// Markers returns the hotspots currently placed.
func (r *ImageRenderer) Markers() []tour.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.markers)
}

// Activate simulates a click on the i-th placed hotspot. It blocks for as
// long as the resulting navigation does.
func (r *ImageRenderer) Activate(i int) error {
	r.mu.Lock()
	if i < 0 || i >= len(r.markers) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoHotspot, i)
	}
	m := r.markers[i]
	fn := r.activate
	r.mu.Unlock()
	if fn != nil {
		fn(m)
	}
	return nil
}
