package video

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/detect"
	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

//rimFrame returns a black 200x200 frame with a filled white rim drawn at (60,80)-(120,100)
func rimFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(0, 0, 200, 200), color.RGBA{0, 0, 0, 0}, -1)
	gocv.Rectangle(&frame, image.Rect(60, 80, 120, 100), color.RGBA{255, 255, 255, 0}, -1)
	return frame
}

func TestHoopContour(t *testing.T) {
	frame := rimFrame(t)
	defer frame.Close()

	contour, ok := HoopContour(frame, geometry.Rect{X: 40, Y: 60, W: 100, H: 60})
	require.True(t, ok)
	assert.InDelta(t, 60, contour.X, 2)
	assert.InDelta(t, 80, contour.Y, 2)
	assert.InDelta(t, 60, contour.W, 3)
	assert.InDelta(t, 20, contour.H, 3)
}

//A small bright blob inside the hoop box must not widen the measured rim
func TestHoopContour_IgnoresStrayEdges(t *testing.T) {
	frame := rimFrame(t)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(130, 108, 134, 112), color.RGBA{255, 255, 255, 0}, -1)

	contour, ok := HoopContour(frame, geometry.Rect{X: 40, Y: 60, W: 100, H: 60})
	require.True(t, ok)
	assert.InDelta(t, 60, contour.X, 2)
	assert.InDelta(t, 80, contour.Y, 2)
	assert.InDelta(t, 60, contour.W, 3)
	assert.InDelta(t, 20, contour.H, 3)
}

func TestLargestContour(t *testing.T) {
	square := func(x, y, side int) []image.Point {
		return []image.Point{image.Pt(x, y), image.Pt(x+side, y), image.Pt(x+side, y+side), image.Pt(x, y+side)}
	}
	line := []image.Point{image.Pt(0, 0), image.Pt(90, 0)}

	i, ok := largestContour([][]image.Point{square(0, 0, 5), square(10, 10, 20), line, nil})
	require.True(t, ok)
	assert.Equal(t, 1, i)

	i, ok = largestContour([][]image.Point{{image.Pt(0, 0), image.Pt(3, 0)}, {image.Pt(0, 0), image.Pt(3, 4)}})
	require.True(t, ok)
	assert.Equal(t, 1, i, "area ties fall back to the bounding box")

	_, ok = largestContour(nil)
	assert.False(t, ok)
}

func TestHoopContour_NoEdges(t *testing.T) {
	frame := rimFrame(t)
	defer frame.Close()

	_, ok := HoopContour(frame, geometry.Rect{X: 0, Y: 0, W: 30, H: 30})
	assert.False(t, ok, "plain background")

	_, ok = HoopContour(frame, geometry.Rect{X: 500, Y: 500, W: 30, H: 30})
	assert.False(t, ok, "outside the frame")

	_, ok = HoopContour(frame, geometry.Rect{X: 10, Y: 10})
	assert.False(t, ok, "empty box")
}

func TestClampBox(t *testing.T) {
	r, ok := clampBox(geometry.Rect{X: -10, Y: 190, W: 50, H: 50}, 200, 200)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 190, 40, 200), r)
}

func TestFillContours(t *testing.T) {
	frame := rimFrame(t)
	defer frame.Close()

	given := &geometry.Rect{W: 30, H: 40}
	f := detect.NewFrameEvents(1)
	f.Events = append(f.Events,
		detect.Event{Kind: detect.KindHoop, Rect: &geometry.Rect{X: 40, Y: 60, W: 100, H: 60}},
		detect.Event{Kind: detect.KindHoop, Rect: &geometry.Rect{X: 40, Y: 60, W: 100, H: 60}, Contour: given},
		detect.Event{Kind: detect.KindPlayer, Rect: &geometry.Rect{X: 40, Y: 60, W: 100, H: 60}},
	)

	fillContours(frame, f)
	assert.NotNil(t, f.Events[0].Contour)
	assert.Same(t, given, f.Events[1].Contour, "detector contours are kept")
	assert.Nil(t, f.Events[2].Contour)
}

func TestAnalyze_MissingVideo(t *testing.T) {
	l := game.NewLoop(game.New(game.DefaultConfig()), 1)
	err := Analyze(context.Background(), "/nonexistent/video.mp4", l, config.DetectorConfig{Command: "true"})
	assert.Error(t, err)
}
