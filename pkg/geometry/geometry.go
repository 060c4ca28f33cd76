package geometry

import "math"

//Point is a coordinate in view space. The y axis grows downward, so a point "below" another has a larger Y.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

//Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

//Rect is an axis-aligned region described by its origin (top-left corner) and size
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) MinX() float64 { return r.X }
func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MinY() float64 { return r.Y }
func (r Rect) MaxY() float64 { return r.Y + r.H }

//Mid returns rect's center point
func (r Rect) Mid() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

//IsEmpty returns true for degenerate rects (no area or non-finite values)
func (r Rect) IsEmpty() bool {
	if !finite(r.X) || !finite(r.Y) || !finite(r.W) || !finite(r.H) {
		return true
	}
	return r.W <= 0 || r.H <= 0
}

//Contains reports whether p lies inside r. Min edges are inclusive, max edges are exclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX() && p.X < r.MaxX() && p.Y >= r.MinY() && p.Y < r.MaxY()
}

//Expand grows the rect by the given amount on each side
func (r Rect) Expand(top, left, bottom, right float64) Rect {
	return Rect{
		X: r.X - left,
		Y: r.Y - top,
		W: r.W + left + right,
		H: r.H + top + bottom,
	}
}

//Distance returns the euclidean distance between a and b
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

//PathLength returns the sum of distances between consecutive points
func PathLength(points []Point) float64 {
	length := 0.0
	for i := 1; i < len(points); i++ {
		length += Distance(points[i-1], points[i])
	}
	return length
}

//AngleDegrees returns atan2(dy, dx) in degrees
func AngleDegrees(dy, dx float64) float64 {
	return math.Atan2(dy, dx) * 180 / math.Pi
}

//Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

//Sign returns -1, 0 or 1
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

//Unique returns given points without duplicates, keeping the first occurrence order
func Unique(points []Point) []Point {
	seen := make(map[Point]bool, len(points))
	res := make([]Point, 0, len(points))
	for _, p := range points {
		if seen[p] {
			continue
		}
		seen[p] = true
		res = append(res, p)
	}
	return res
}

//Within returns the points of given slice that lie inside r, in order
func Within(points []Point, r Rect) []Point {
	res := make([]Point, 0, len(points))
	for _, p := range points {
		if r.Contains(p) {
			res = append(res, p)
		}
	}
	return res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
