// Package convert renders the first page of a PDF into a PNG preview.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

const (
	// DefaultDPI is the render resolution used when none is configured.
	DefaultDPI = 150
	// ContentType of every produced preview.
	ContentType = "image/png"
)

// Image is an encoded preview of page one.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// ConversionError reports why a document could not be rendered.
type ConversionError struct {
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion failed: %s: %v", e.Reason, e.Err)
	}
	return "conversion failed: " + e.Reason
}

func (e *ConversionError) Unwrap() error { return e.Err }

// renderFunc returns the first page raster and the document's page count.
type renderFunc func(data []byte, dpi float64) (image.Image, int, error)

// Converter turns PDF bytes into a PNG of the first page.
type Converter struct {
	DPI    float64
	render renderFunc
}

// New returns a Converter rendering at dpi (DefaultDPI when <= 0).
func New(dpi float64) *Converter {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Converter{DPI: dpi, render: renderFirstPage}
}

// Convert renders page one of pdf. Every failure, including a renderer panic,
// is returned as *ConversionError.
func (c *Converter) Convert(ctx context.Context, pdf []byte) (img Image, err error) {
	if err := ctx.Err(); err != nil {
		return Image{}, &ConversionError{Reason: "canceled", Err: err}
	}
	if len(pdf) == 0 {
		return Image{}, &ConversionError{Reason: "empty document"}
	}

	defer func() {
		if r := recover(); r != nil {
			img = Image{}
			err = &ConversionError{Reason: fmt.Sprintf("renderer panic: %v", r)}
		}
	}()

	render := c.render
	if render == nil {
		render = renderFirstPage
	}
	dpi := c.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	raster, pages, err := render(pdf, dpi)
	if err != nil {
		var convErr *ConversionError
		if errors.As(err, &convErr) {
			return Image{}, convErr
		}
		return Image{}, &ConversionError{Reason: "render first page", Err: err}
	}
	if pages == 0 || raster == nil {
		return Image{}, &ConversionError{Reason: "document has no pages"}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return Image{}, &ConversionError{Reason: "encode png", Err: err}
	}
	bounds := raster.Bounds()
	return Image{
		Data:        buf.Bytes(),
		ContentType: ContentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func renderFirstPage(data []byte, dpi float64) (image.Image, int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, 0, &ConversionError{Reason: "unreadable pdf", Err: err}
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, 0, nil
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, pages, &ConversionError{Reason: "render page 1", Err: err}
	}
	return img, pages, nil
}
