// Package smoke implements a fast check of the image library: build a
// bitmap, inspect it, encode it to a file, and verify that a blur actually
// blends pixel values. A failure here means the library is broken badly
// enough that the full test suite is not worth running.
package smoke

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// OutputFile is the PNG written by the basic check. It is left in place.
const OutputFile = "smoke_test_output.png"

// CheckError reports a failed assertion.
type CheckError struct {
	Check string
	Msg   string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Check, e.Msg)
}

// Run performs both checks in order, writing progress to w and the output
// image to dir. The first failure aborts the run.
func Run(dir string, w io.Writer) error {
	fmt.Fprintln(w, "--- Starting Smoke Test ---")

	fmt.Fprintln(w, "Running basic check: create, inspect, save...")
	if err := Basic(filepath.Join(dir, OutputFile)); err != nil {
		return err
	}
	fmt.Fprintln(w, "Basic check PASSED.")

	fmt.Fprintln(w, "Running blur check: filter, inspect pixels...")
	if err := Blur(); err != nil {
		return err
	}
	fmt.Fprintln(w, "Blur check PASSED.")

	fmt.Fprintln(w, "--- Smoke Test: ALL CHECKS PASSED ---")
	return nil
}

// Basic creates a 100x50 black RGB image, checks its size and saves it as PNG.
func Basic(path string) error {
	const width, height = 100, 50

	img := imaging.New(width, height, color.Black)
	if got := img.Bounds().Size(); got != image.Pt(width, height) {
		return &CheckError{Check: "basic check", Msg: fmt.Sprintf("incorrect size: expected (%d, %d), got (%d, %d)", width, height, got.X, got.Y)}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// Blur applies a radius-1 Gaussian blur to a white 3x3 grayscale image with
// a black centre, and checks that both the centre and a corner moved
// strictly between black and white.
func Blur() error {
	src := image.NewGray(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			src.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	src.SetGray(1, 1, color.Gray{Y: 0})

	blurred := imaging.Blur(src, 1)

	return checkBlended(grayAt(blurred, 1, 1), grayAt(blurred, 0, 0))
}

// checkBlended requires both pixels to lie strictly between black and white.
func checkBlended(center, corner uint8) error {
	if !(center > 0 && center < 255) {
		return &CheckError{Check: "blur check", Msg: fmt.Sprintf("center pixel value is %d, expected it to be blurred (not pure black or white)", center)}
	}
	if !(corner > 0 && corner < 255) {
		return &CheckError{Check: "blur check", Msg: fmt.Sprintf("corner pixel value is %d, expected it to be blurred (not pure white)", corner)}
	}
	return nil
}

func grayAt(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}
