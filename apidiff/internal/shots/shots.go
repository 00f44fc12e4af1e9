// Package shots compares page screenshots of two snapshots by name.
//
// Visual findings never exceed MINOR; data differences drive severity.
package shots

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"maps"
	"slices"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
)

// Reasons reported on DIFFERENT screenshots.
const (
	ReasonVisualChange = "visual-change"
	ReasonVisualResize = "visual-resize"
)

// Options tunes the pixel comparison.
type Options struct {
	// PixelTolerance is the per-channel difference (0-255) under which a
	// pixel counts as unchanged. Default 16.
	PixelTolerance int
	// ChangedRatio is the fraction of changed pixels above which the
	// screenshot is DIFFERENT. Default 0.01.
	ChangedRatio float64
}

func (o *Options) applyDefaults() {
	if o.PixelTolerance <= 0 {
		o.PixelTolerance = 16
	}
	if o.PixelTolerance > 255 {
		o.PixelTolerance = 255
	}
	if o.ChangedRatio <= 0 {
		o.ChangedRatio = 0.01
	}
}

// Compare pairs screenshots by name and returns one result per name, sorted.
// When a side holds a name twice the first occurrence is used.
func Compare(before, after []snapshot.Screenshot, opts Options) []diffrec.ScreenshotResult {
	opts.applyDefaults()
	b, a := byName(before), byName(after)

	names := make(map[string]struct{}, len(b)+len(a))
	for n := range b {
		names[n] = struct{}{}
	}
	for n := range a {
		names[n] = struct{}{}
	}

	out := make([]diffrec.ScreenshotResult, 0, len(names))
	for _, n := range slices.Sorted(maps.Keys(names)) {
		bs, inB := b[n]
		as, inA := a[n]
		switch {
		case !inA:
			out = append(out, diffrec.ScreenshotResult{Name: n, Status: diffrec.StatusRemoved, Severity: diffrec.Info})
		case !inB:
			out = append(out, diffrec.ScreenshotResult{Name: n, Status: diffrec.StatusAdded, Severity: diffrec.Info})
		default:
			out = append(out, compareOne(n, bs.Data, as.Data, opts))
		}
	}
	return out
}

func byName(list []snapshot.Screenshot) map[string]snapshot.Screenshot {
	m := make(map[string]snapshot.Screenshot, len(list))
	for _, s := range list {
		if _, dup := m[s.Name]; !dup {
			m[s.Name] = s
		}
	}
	return m
}

func compareOne(name string, before, after []byte, opts Options) diffrec.ScreenshotResult {
	res := diffrec.ScreenshotResult{Name: name}
	if len(before) > 0 && sha256.Sum256(before) == sha256.Sum256(after) {
		res.Status = diffrec.StatusIdentical
		return res
	}

	bi, err := decode(before)
	if err != nil {
		return errResult(res, "before", err)
	}
	ai, err := decode(after)
	if err != nil {
		return errResult(res, "after", err)
	}

	if bi.Bounds().Size() != ai.Bounds().Size() {
		res.Status = diffrec.StatusDifferent
		res.Severity = diffrec.Minor
		res.Reason = ReasonVisualResize
		res.DiffRatio = 1
		return res
	}

	res.DiffRatio = ChangedRatio(bi, ai, opts.PixelTolerance)
	if res.DiffRatio > opts.ChangedRatio {
		res.Status = diffrec.StatusDifferent
		res.Severity = diffrec.Minor
		res.Reason = ReasonVisualChange
		return res
	}
	res.Status = diffrec.StatusIdentical
	return res
}

func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("no image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func errResult(res diffrec.ScreenshotResult, side string, err error) diffrec.ScreenshotResult {
	res.Status = diffrec.StatusError
	res.Severity = diffrec.Minor
	res.Error = fmt.Sprintf("shots: decode %s: %v", side, err)
	return res
}

// ChangedRatio returns the fraction of pixels whose R, G, B or A channel
// differs by more than tolerance (8-bit scale). Both images must have the
// same size.
func ChangedRatio(a, b image.Image, tolerance int) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	changed := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r1, g1, b1, a1 := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, a2 := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if over(r1, r2, tolerance) || over(g1, g2, tolerance) || over(b1, b2, tolerance) || over(a1, a2, tolerance) {
				changed++
			}
		}
	}
	return float64(changed) / float64(w*h)
}

func over(c1, c2 uint32, tolerance int) bool {
	d := int(c1>>8) - int(c2>>8)
	if d < 0 {
		d = -d
	}
	return d > tolerance
}
