//go:build ignore

// gen_fixtures creates a small image folder and a matching catalog for the
// E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

type entry struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

var catalog = []entry{
	{ID: "b-100", DisplayName: "Marina Tower"},
	{ID: "b-101", DisplayName: "Creek Horizon"},
	{ID: "b-102", DisplayName: "Palm Residence"},
	{ID: "b-103", DisplayName: "Sunset Plaza"},
	{ID: "b-104", DisplayName: "Harbour Gate"},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	images := filepath.Join(dir, "images")
	if err := os.MkdirAll(images, 0o755); err != nil {
		panic(err)
	}

	// Oversized landscape JPEG, resized to 1000x500.
	save(filepath.Join(images, "IMG_marina-tower.jpg"), gradient(2400, 1200))
	// Portrait PNG with alpha, flattened and resized.
	save(filepath.Join(images, "creek_horizon_final.png"), alphaGradient(900, 1600))
	// Small formats that only need conversion.
	save(filepath.Join(images, "2024-05-01 Palm Residence.bmp"), bordered(400, 300, 60))
	save(filepath.Join(images, "sunset-plaza-2.tiff"), bordered(640, 480, 120))
	save(filepath.Join(images, "harbour gate.gif"), bordered(320, 240, 180))
	// Unmatched and broken inputs.
	save(filepath.Join(images, "zzqx.jpg"), gradient(200, 200))
	if err := os.WriteFile(filepath.Join(images, "broken-tower.jpg"), []byte("not an image"), 0o644); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(images, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		panic(err)
	}

	data, err := yaml.Marshal(map[string][]entry{"entries": catalog})
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "catalog.yaml"), data, 0o644); err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 8 files and a %d-entry catalog in %s\n", len(catalog), dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func bordered(w, h int, base uint8) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{R: base, G: base / 2, B: 255 - base, A: 255})
	frame := imaging.New(w-8, h-8, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	inner := imaging.New(w-16, h-16, color.NRGBA{R: base, G: base / 2, B: 255 - base, A: 255})
	img = imaging.Paste(img, frame, image.Pt(4, 4))
	return imaging.Paste(img, inner, image.Pt(8, 8))
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func save(path string, img image.Image) {
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		panic(err)
	}
}
