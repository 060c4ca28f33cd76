package video

import (
	"image"
	"math"

	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"gocv.io/x/gocv"
)

//canny thresholds used to find the rim's edges
const (
	cannyLow  = 50
	cannyHigh = 150
)

//HoopContour measures the hoop's edge contour inside box (frame pixels). Canny edges are traced into external
//contours and the largest one is taken as the rim, so stray edges (net, backboard, noise) don't widen it.
//ok is false when the box falls outside the frame or holds no contour.
func HoopContour(frame gocv.Mat, box geometry.Rect) (*geometry.Rect, bool) {
	roiRect, ok := clampBox(box, frame.Cols(), frame.Rows())
	if !ok {
		return nil, false
	}

	roi := frame.Region(roiRect)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if roi.Channels() == 1 {
		roi.CopyTo(&gray)
	} else {
		gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLow, cannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	best, found := largestContour(contours)
	if !found {
		return nil, false
	}

	rect := gocv.BoundingRect(contours[best]).Add(roiRect.Min)
	return &geometry.Rect{
		X: float64(rect.Min.X),
		Y: float64(rect.Min.Y),
		W: float64(rect.Dx()),
		H: float64(rect.Dy()),
	}, true
}

//largestContour returns the index of the contour enclosing the largest area. Open edge chains have no area, they
//are compared by their bounding box instead.
func largestContour(contours [][]image.Point) (int, bool) {
	best, bestArea, bestBox := -1, -1.0, -1
	for i, c := range contours {
		if len(c) == 0 {
			continue
		}
		area := gocv.ContourArea(c)
		b := gocv.BoundingRect(c)
		box := b.Dx() * b.Dy()
		if area > bestArea || (area == bestArea && box > bestBox) {
			best, bestArea, bestBox = i, area, box
		}
	}
	return best, best >= 0
}

//clampBox converts box to an image rectangle inside a width x height frame
func clampBox(box geometry.Rect, width, height int) (image.Rectangle, bool) {
	if box.IsEmpty() {
		return image.Rectangle{}, false
	}

	r := image.Rect(int(box.MinX()), int(box.MinY()), int(math.Ceil(box.MaxX())), int(math.Ceil(box.MaxY())))
	r = r.Intersect(image.Rect(0, 0, width, height))
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}
