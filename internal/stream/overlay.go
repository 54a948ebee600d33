package stream

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"hazlabel/internal/pipeline"
)

// classColors cycles per track ID so adjacent tracks stay distinguishable.
var classColors = []color.RGBA{
	{255, 56, 56, 255},
	{255, 157, 151, 255},
	{255, 112, 31, 255},
	{72, 249, 10, 255},
	{26, 147, 52, 255},
	{61, 219, 134, 255},
	{0, 194, 255, 255},
	{52, 69, 147, 255},
	{132, 56, 255, 255},
	{255, 149, 200, 255},
}

func trackColor(trackID int64) color.RGBA {
	if trackID < 0 {
		trackID = -trackID
	}
	return classColors[trackID%int64(len(classColors))]
}

// Annotate draws track boxes and labels on a JPEG frame and re-encodes it.
// Decode or encode failures fall back to the unannotated frame.
func Annotate(jpegData []byte, detections []pipeline.TrackedDetection) []byte {
	if len(detections) == 0 {
		return jpegData
	}

	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return jpegData
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	for _, det := range detections {
		c := trackColor(det.TrackID)
		x := int(det.Box.X1)
		y := int(det.Box.Y1)
		w := int(det.Box.Width())
		h := int(det.Box.Height())
		drawBox(rgba, x, y, w, h, c, 2)
		label := fmt.Sprintf("#%d %s %.0f%%", det.TrackID, det.Class, det.Confidence*100)
		drawLabel(rgba, x, y-5, label, c)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: 85}); err != nil {
		return jpegData
	}
	return buf.Bytes()
}

// drawBox draws a rectangle on the image
func drawBox(img *image.RGBA, x, y, w, h int, c color.RGBA, thickness int) {
	bounds := img.Bounds()

	for t := 0; t < thickness; t++ {
		// Top edge
		for i := x; i < x+w && i < bounds.Max.X; i++ {
			if y+t >= 0 && y+t < bounds.Max.Y && i >= 0 {
				img.Set(i, y+t, c)
			}
		}
		// Bottom edge
		for i := x; i < x+w && i < bounds.Max.X; i++ {
			if y+h-t >= 0 && y+h-t < bounds.Max.Y && i >= 0 {
				img.Set(i, y+h-t, c)
			}
		}
		// Left edge
		for j := y; j < y+h && j < bounds.Max.Y; j++ {
			if x+t >= 0 && x+t < bounds.Max.X && j >= 0 {
				img.Set(x+t, j, c)
			}
		}
		// Right edge
		for j := y; j < y+h && j < bounds.Max.Y; j++ {
			if x+w-t >= 0 && x+w-t < bounds.Max.X && j >= 0 {
				img.Set(x+w-t, j, c)
			}
		}
	}
}

// drawLabel draws text on the image
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < 10 {
		y = 10
	}
	if x < 0 {
		x = 0
	}

	// Draw background rectangle for text
	bgColor := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= 0 && px < img.Bounds().Max.X && py >= 0 && py < img.Bounds().Max.Y {
				img.Set(px, py, bgColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}
