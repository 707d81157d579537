// Command paneltest runs panel detection on a meme image and outputs results.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strconv"
	"strings"

	memeimage "meme-reveal/internal/image"
	"meme-reveal/internal/panel"
	"meme-reveal/pkg/colorutil"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func main() {
	imagePath := flag.String("image", "", "Path to meme image (PNG, JPEG, GIF, WebP, BMP, TIFF)")
	darkness := flag.Float64("darkness", panel.DefaultParams().DarknessThreshold, "Luma below which a pixel is dark (0-255)")
	density := flag.Float64("density", panel.DefaultParams().DensityThreshold, "Dark fraction for a divider line (0-1)")
	minSize := flag.Int("min-size", panel.DefaultParams().MinPanelSize, "Minimum panel extent in pixels")
	overlay := flag.String("overlay", "", "Write an overlay PNG with numbered panels to this path")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: paneltest -image <path> [-darkness 60] [-density 0.6] [-min-size 40] [-overlay out.png]")
		os.Exit(1)
	}

	img, data, err := memeimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	fmt.Printf("Loaded image: %dx%d pixels (%d bytes)\n", bounds.Dx(), bounds.Dy(), len(data))

	params := panel.DefaultParams().WithThresholds(*darkness, *density).WithMinPanelSize(*minSize)
	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Darkness threshold: %.0f\n", params.DarknessThreshold)
	fmt.Printf("  Density threshold: %.2f\n", params.DensityThreshold)
	fmt.Printf("  Min panel size: %d px\n", params.MinPanelSize)

	fmt.Printf("\nDetecting panels...\n")
	panels := panel.NewDetector(params).Detect(img)

	fmt.Printf("\nDetected %d panels (reading order):\n", len(panels))
	fmt.Printf("%-4s %8s %8s %8s %8s   %s\n", "#", "X", "Y", "W", "H", "Normalized box")
	fmt.Println(strings.Repeat("-", 72))

	for i, p := range panels {
		b := p.Normalize(bounds.Dx(), bounds.Dy())
		fmt.Printf("%-4d %8d %8d %8d %8d   [%.0f %.0f %.0f %.0f]\n",
			i+1, p.X, p.Y, p.Width, p.Height, b.XMin, b.YMin, b.XMax, b.YMax)
	}

	if *overlay != "" {
		out := memeimage.ToRGBA(img)
		for i, p := range panels {
			r := p.Image().Add(bounds.Min)
			drawOutline(out, r, 2, colorutil.Magenta)
			drawLabel(out, r.Min.X+6, r.Min.Y+16, strconv.Itoa(i+1))
		}
		if err := writePNG(*overlay, out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write overlay: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nOverlay written to %s\n", *overlay)
	}
}

func drawOutline(img *image.RGBA, r image.Rectangle, width int, c color.Color) {
	u := image.NewUniform(c)
	for i := 0; i < width; i++ {
		in := r.Inset(i)
		draw.Draw(img, image.Rect(in.Min.X, in.Min.Y, in.Max.X, in.Min.Y+1), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(in.Min.X, in.Max.Y-1, in.Max.X, in.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(in.Min.X, in.Min.Y, in.Min.X+1, in.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(in.Max.X-1, in.Min.Y, in.Max.X, in.Max.Y), u, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.RGBA, x, y int, label string) {
	bg := image.Rect(x-3, y-13, x+7*len(label)+3, y+4)
	draw.Draw(img, bg, image.NewUniform(colorutil.Black), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorutil.Yellow),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
