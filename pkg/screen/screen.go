// Package screen shows drivetrain telemetry on the 128x128 status display.
package screen

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fogleman/gg"

	"github.com/tigerbot-team/swervebot/pkg/drivetrain"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/telemetry"
)

const (
	DefaultDevice = "/dev/fb1"

	S = 128
)

// Screen is a telemetry sink that keeps the latest values for the display loop.
type Screen struct {
	*telemetry.Table

	log log.Logger
}

func New(l log.Logger) *Screen {
	return &Screen{Table: telemetry.NewTable(), log: l}
}

// Render draws the current values: a heading dial, the pose and a warning triangle
// while an autonomous sequence is waiting.
func (s *Screen) Render() image.Image {
	dc := gg.NewContext(S, S)
	dc.SetRGBA(1, 0.9, 0, 1)

	heading, _ := s.Number(drivetrain.TelemHeading)
	drawDial(dc, heading)

	x, _ := s.Number(drivetrain.TelemPoseX)
	y, _ := s.Number(drivetrain.TelemPoseY)
	dc.DrawString(fmt.Sprintf("X %6.2f", x), 70, 20)
	dc.DrawString(fmt.Sprintf("Y %6.2f", y), 70, 34)
	dc.DrawString(fmt.Sprintf("H %6.1f", heading), 70, 48)

	if waiting, _ := s.Bool(drivetrain.TelemWaiting); waiting {
		dc.Push()
		dc.Translate(20, 100)
		DrawWarning(dc)
		dc.Pop()
		dc.SetRGBA(1, 0.9, 0, 1)
		dc.DrawString("WAITING", 40, 104)
	}
	return dc.Image()
}

func drawDial(dc *gg.Context, heading float64) {
	const cx, cy, r = 32, 40, 26
	dc.DrawCircle(cx, cy, r)
	dc.Stroke()
	// Zero heading points up the screen; anticlockwise is positive.
	theta := gg.Radians(-heading - 90)
	dc.DrawLine(cx, cy, cx+r*math.Cos(theta), cy+r*math.Sin(theta))
	dc.Stroke()
}

func DrawWarning(dc *gg.Context) {
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 14, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -3, 3)
}

// toRGB565 converts the image into the display's framebuffer layout: 16-bit
// little-endian RGB565, with the panel mounted rotated by 90 degrees.
func toRGB565(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}

// LoopUpdatingScreen redraws the display twice a second until ctx is done, then
// blanks it.  A missing display is logged and otherwise ignored.
func (s *Screen) LoopUpdatingScreen(ctx context.Context, device string, c clock.Clock) {
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		s.log.Warnf("Failed to open screen %s, ignoring: %v", device, err)
		return
	}
	defer f.Close()

	ticker := c.Ticker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(make([]byte, S*S*2))
			return
		case <-ticker.C:
		}

		buf := toRGB565(s.Render())
		if _, err := f.Seek(0, 0); err != nil {
			s.log.Errorf("Screen failure: %v", err)
			return
		}
		for i := 0; i < S; i++ {
			if _, err := f.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
				s.log.Errorf("Screen failure: %v", err)
				return
			}
			c.Sleep(10 * time.Microsecond)
		}
	}
}
