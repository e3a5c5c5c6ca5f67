package render

import (
	"bytes"
	"context"
	"testing"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

const tinySVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10" width="10" height="10"><circle cx="5" cy="5" r="4" fill="#6d49d6"/></svg>`

func TestMissingConverter(t *testing.T) {
	saved := converter
	converter = "rsvg-convert-does-not-exist"
	t.Cleanup(func() { converter = saved })

	_, err := ToPDF(context.Background(), []byte(tinySVG))
	if !tserrors.Is(err, tserrors.ErrCodeUnsupported) {
		t.Fatalf("err = %v, want UNSUPPORTED", err)
	}
}

func TestToPNGRejectsScale(t *testing.T) {
	if _, err := ToPNG(context.Background(), []byte(tinySVG), 0); !tserrors.Is(err, tserrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestConvert(t *testing.T) {
	if !Available() {
		t.Skip("rsvg-convert not installed")
	}
	png, err := ToPNG(context.Background(), []byte(tinySVG), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("output is not a PNG: % x", png[:min(8, len(png))])
	}
	pdf, err := ToPDF(context.Background(), []byte(tinySVG))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("output is not a PDF")
	}
}
