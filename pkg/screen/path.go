package screen

import (
	"math"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/odometry"
)

// RenderPath draws the poses as a track on a size x size PNG, scaled to fit, with a
// tick on each pose showing the heading every so often.
func RenderPath(poses []odometry.Pose2D, size int, file string) error {
	if len(poses) == 0 {
		return errors.New("no poses to draw")
	}
	minX, maxX := poses[0].X, poses[0].X
	minY, maxY := poses[0].Y, poses[0].Y
	for _, p := range poses {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	span := math.Max(math.Max(maxX-minX, maxY-minY), 0.1)
	margin := float64(size) * 0.1
	scale := (float64(size) - 2*margin) / span

	// Field x is up the image and field y is to the left.
	toImage := func(p odometry.Pose2D) (float64, float64) {
		return float64(size) - margin - (p.Y-minY)*scale, float64(size) - margin - (p.X-minX)*scale
	}

	dc := gg.NewContext(size, size)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0.8)
	dc.SetLineWidth(2)
	for i, p := range poses {
		x, y := toImage(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()

	step := len(poses)/20 + 1
	dc.SetRGB(0.8, 0, 0)
	dc.SetLineWidth(1)
	for i := 0; i < len(poses); i += step {
		x, y := toImage(poses[i])
		h := poses[i].Heading.Radians()
		dc.DrawLine(x, y, x-10*math.Sin(h), y-10*math.Cos(h))
		dc.Stroke()
	}

	return errors.Wrap(dc.SavePNG(file), "failed to save path image")
}
