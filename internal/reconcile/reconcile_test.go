package reconcile

import (
	"errors"
	"strings"
	"testing"

	"contentforge/internal/domain"
	"contentforge/internal/telemetry"
)

// stubEncoder tags payloads or fails every call
type stubEncoder struct {
	fail bool
}

func (e stubEncoder) Reencode(data []byte, mime string) ([]byte, string, error) {
	if e.fail {
		return nil, "", errors.New("codec unavailable")
	}
	return append([]byte("enc:"), data...), ".jpg", nil
}

func okResult(payload string) domain.ImageResult {
	return domain.ImageResult{Data: []byte(payload), Mime: "image/png"}
}

func failedResult() domain.ImageResult {
	return domain.ImageResult{Err: errors.New("render failed")}
}

const twoPlaceholderDoc = `Intro paragraph.

![rooftop]({{IMAGE_1}})

Middle text.

{{IMAGE_2}}

Closing text.`

func TestReconcile(t *testing.T) {
	r := New(stubEncoder{}, telemetry.NewMetricsForTest())

	t.Run("equal counts pair positionally", func(t *testing.T) {
		metas := []domain.ImageMeta{
			{Filename: "roof.jpg", AltText: "Roof installation", Caption: "A finished system"},
			{Filename: "inverter.jpg", AltText: "The inverter"},
		}
		results := []domain.ImageResult{okResult("one"), okResult("two")}

		text, uploads, err := r.Reconcile(twoPlaceholderDoc, metas, results, "Solar Guide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(uploads) != 2 {
			t.Fatalf("uploads = %d, want 2", len(uploads))
		}
		if uploads[0].Filename != "roof.jpg" || uploads[1].Filename != "inverter.jpg" {
			t.Errorf("filenames = %q, %q", uploads[0].Filename, uploads[1].Filename)
		}
		if !strings.Contains(text, `![Roof installation](roof.jpg "A finished system")`) {
			t.Errorf("embed not rewritten:\n%s", text)
		}
		if !strings.Contains(text, "![The inverter](inverter.jpg)") {
			t.Errorf("bare token not rewritten:\n%s", text)
		}
		if strings.Contains(text, "{{IMAGE") {
			t.Errorf("placeholder survived:\n%s", text)
		}
	})

	t.Run("extra images get generated metadata", func(t *testing.T) {
		doc := twoPlaceholderDoc + "\n\n{{IMAGE_3}}\n"
		metas := []domain.ImageMeta{
			{Filename: "roof.jpg", AltText: "Roof installation"},
			{Filename: "inverter.jpg", AltText: "The inverter"},
		}
		results := []domain.ImageResult{okResult("one"), okResult("two"), okResult("three")}

		text, uploads, err := r.Reconcile(doc, metas, results, "Solar Panels Guide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(uploads) != 3 {
			t.Fatalf("uploads = %d, want 3", len(uploads))
		}
		third := uploads[2]
		if third.Filename != "solar-panels-guide-3.jpg" {
			t.Errorf("generated filename = %q", third.Filename)
		}
		if !strings.Contains(third.AltText, "illustration 3") {
			t.Errorf("generated alt = %q", third.AltText)
		}
		if strings.Contains(text, "{{IMAGE_3}}") {
			t.Errorf("third placeholder survived:\n%s", text)
		}
	})

	t.Run("failed images strip their placeholders", func(t *testing.T) {
		metas := []domain.ImageMeta{
			{Filename: "roof.jpg", AltText: "Roof installation"},
			{Filename: "inverter.jpg", AltText: "The inverter"},
		}
		results := []domain.ImageResult{okResult("one"), failedResult()}

		text, uploads, err := r.Reconcile(twoPlaceholderDoc, metas, results, "Solar Guide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(uploads) != 1 {
			t.Fatalf("uploads = %d, want 1", len(uploads))
		}
		if strings.Contains(text, "{{IMAGE") {
			t.Errorf("placeholder survived:\n%s", text)
		}
		if strings.Contains(text, "\n\n\n") {
			t.Errorf("stripped placeholder left a blank run:\n%s", text)
		}
	})

	t.Run("all images failed", func(t *testing.T) {
		metas := []domain.ImageMeta{{Filename: "roof.jpg"}, {Filename: "inverter.jpg"}}
		results := []domain.ImageResult{failedResult(), failedResult()}

		text, uploads, err := r.Reconcile(twoPlaceholderDoc, metas, results, "Solar Guide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(uploads) != 0 {
			t.Errorf("uploads = %d, want 0", len(uploads))
		}
		if strings.Contains(text, "{{IMAGE") || strings.Contains(text, "![") {
			t.Errorf("image markup survived with no images:\n%s", text)
		}
		if !strings.Contains(text, "Intro paragraph.") || !strings.Contains(text, "Closing text.") {
			t.Errorf("prose lost:\n%s", text)
		}
	})

	t.Run("no placeholders leaves prose untouched", func(t *testing.T) {
		doc := "Plain document.\n\nNo images referenced.\n"
		text, uploads, err := r.Reconcile(doc, nil, []domain.ImageResult{okResult("one")}, "Title")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(uploads) != 1 {
			t.Errorf("uploads = %d, want 1 (image still published)", len(uploads))
		}
		if text != doc {
			t.Errorf("prose changed:\n%q", text)
		}
	})

	t.Run("output is stable on a second pass", func(t *testing.T) {
		metas := []domain.ImageMeta{{Filename: "roof.jpg", AltText: "Roof"}}
		results := []domain.ImageResult{okResult("one")}

		first, uploads, err := r.Reconcile(twoPlaceholderDoc, metas, results, "Solar Guide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, _, err := r.Reconcile(first, metas, results, "Solar Guide")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second != first {
			t.Errorf("second pass changed the document:\n%q\nvs\n%q", second, first)
		}
		_ = uploads
	})

	t.Run("empty title falls back to a generic slug", func(t *testing.T) {
		_, uploads, err := r.Reconcile("{{IMAGE_1}}", nil, []domain.ImageResult{okResult("one")}, "   ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if uploads[0].Filename != "image-1.jpg" {
			t.Errorf("filename = %q", uploads[0].Filename)
		}
	})
}

func TestReconcileEncoderFallback(t *testing.T) {
	r := New(stubEncoder{fail: true}, telemetry.NewMetricsForTest())

	_, uploads, err := r.Reconcile("{{IMAGE_1}}", []domain.ImageMeta{{Filename: "roof", AltText: "Roof"}},
		[]domain.ImageResult{okResult("rawbytes")}, "Solar Guide")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(uploads[0].Data) != "rawbytes" {
		t.Errorf("fallback lost the original bytes: %q", uploads[0].Data)
	}
	// Extension comes from the source mime when re-encoding failed.
	if uploads[0].Filename != "roof.png" {
		t.Errorf("filename = %q, want roof.png", uploads[0].Filename)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Solar Panels Guide", "solar-panels-guide"},
		{"  Trim -- me  ", "trim-me"},
		{"Ärger & Freude", "ärger-freude"},
		{"42 ways", "42-ways"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtForMime(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      ".jpg",
		"IMAGE/PNG":       ".png",
		"image/webp":      ".webp",
		"application/pdf": ".bin",
	}
	for mime, want := range cases {
		if got := extForMime(mime); got != want {
			t.Errorf("extForMime(%q) = %q, want %q", mime, got, want)
		}
	}
}
