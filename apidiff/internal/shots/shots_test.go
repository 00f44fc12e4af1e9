package shots

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
)

func encode(t *testing.T, w, h int, fill color.RGBA, paint func(*image.RGBA)) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	if paint != nil {
		paint(img)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var white = color.RGBA{255, 255, 255, 255}

func TestCompare(t *testing.T) {
	base := encode(t, 10, 10, white, nil)
	// Same pixels, different encoding path: one pixel nudged within tolerance.
	nudged := encode(t, 10, 10, white, func(img *image.RGBA) { img.SetRGBA(0, 0, color.RGBA{250, 250, 250, 255}) })
	// 20 of 100 pixels black.
	changed := encode(t, 10, 10, white, func(img *image.RGBA) {
		for x := 0; x < 10; x++ {
			img.SetRGBA(x, 0, color.RGBA{0, 0, 0, 255})
			img.SetRGBA(x, 1, color.RGBA{0, 0, 0, 255})
		}
	})
	wider := encode(t, 12, 10, white, nil)

	before := []snapshot.Screenshot{
		{Name: "same", Data: base},
		{Name: "nudged", Data: base},
		{Name: "changed", Data: base},
		{Name: "resized", Data: base},
		{Name: "broken", Data: base},
		{Name: "gone", Data: base},
	}
	after := []snapshot.Screenshot{
		{Name: "same", Data: base},
		{Name: "nudged", Data: nudged},
		{Name: "changed", Data: changed},
		{Name: "resized", Data: wider},
		{Name: "broken", Data: []byte("not an image")},
		{Name: "new", Data: base},
	}

	got := map[string]diffrec.ScreenshotResult{}
	for _, r := range Compare(before, after, Options{}) {
		got[r.Name] = r
	}

	want := map[string]diffrec.Status{
		"same":    diffrec.StatusIdentical,
		"nudged":  diffrec.StatusIdentical,
		"changed": diffrec.StatusDifferent,
		"resized": diffrec.StatusDifferent,
		"broken":  diffrec.StatusError,
		"gone":    diffrec.StatusRemoved,
		"new":     diffrec.StatusAdded,
	}
	for name, st := range want {
		if got[name].Status != st {
			t.Errorf("%s: got %s, want %s", name, got[name].Status, st)
		}
	}
	if r := got["changed"]; r.Reason != ReasonVisualChange || r.Severity != diffrec.Minor || r.DiffRatio < 0.19 || r.DiffRatio > 0.21 {
		t.Errorf("changed: %+v", r)
	}
	if got["resized"].Reason != ReasonVisualResize {
		t.Errorf("resized reason: %q", got["resized"].Reason)
	}
	if got["broken"].Error == "" {
		t.Error("broken: expected error text")
	}
	if got["gone"].Severity != diffrec.Info {
		t.Errorf("gone severity: %s", got["gone"].Severity)
	}
}

func TestCompare_SortedByName(t *testing.T) {
	shots := []snapshot.Screenshot{{Name: "b"}, {Name: "a"}, {Name: "c"}}
	res := Compare(shots, nil, Options{})
	if len(res) != 3 || res[0].Name != "a" || res[2].Name != "c" {
		t.Errorf("order: %+v", res)
	}
}

func TestChangedRatio_Tolerance(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 2, 1))
	b := image.NewRGBA(image.Rect(0, 0, 2, 1))
	a.SetRGBA(0, 0, color.RGBA{100, 0, 0, 255})
	b.SetRGBA(0, 0, color.RGBA{120, 0, 0, 255})
	if r := ChangedRatio(a, b, 16); r != 0.5 {
		t.Errorf("tolerance 16: got %v, want 0.5", r)
	}
	if r := ChangedRatio(a, b, 32); r != 0 {
		t.Errorf("tolerance 32: got %v, want 0", r)
	}
}
