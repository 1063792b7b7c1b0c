package domain

import "math"

// BBox is an axis-aligned bounding box in image pixel coordinates.
type BBox struct {
	// X is the left edge.
	X int `json:"x"`

	// Y is the top edge.
	Y int `json:"y"`

	// W is the width in pixels.
	W int `json:"w"`

	// H is the height in pixels.
	H int `json:"h"`
}

// Area returns the box area in pixels. Degenerate boxes have zero area.
func (b BBox) Area() int {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Centroid returns the box center.
func (b BBox) Centroid() (x, y float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

// IoU computes the Intersection-over-Union of two boxes. Returns 0 when
// either box is degenerate or the boxes do not overlap.
func (b BBox) IoU(o BBox) float64 {
	ix := maxInt(b.X, o.X)
	iy := maxInt(b.Y, o.Y)
	ix2 := minInt(b.X+b.W, o.X+o.W)
	iy2 := minInt(b.Y+b.H, o.Y+o.H)

	iw := ix2 - ix
	ih := iy2 - iy
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := float64(iw * ih)
	union := float64(b.Area()+o.Area()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// WindowObservation is one detected opening (window) in a single image.
// Observations live for one validation call only.
type WindowObservation struct {
	// ID is the detection-order index within its image.
	ID int `json:"id"`

	// BBox is the detected bounding box.
	BBox BBox `json:"bbox"`

	// AreaPx is the opening area in pixels.
	AreaPx int `json:"area_px"`

	// CentroidX and CentroidY locate the opening center.
	CentroidX float64 `json:"centroid_x"`
	CentroidY float64 `json:"centroid_y"`

	// Confidence is the detector's confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

// NewWindowObservation derives area and centroid from the bounding box.
func NewWindowObservation(id int, box BBox, confidence float64) WindowObservation {
	cx, cy := box.Centroid()
	return WindowObservation{
		ID:         id,
		BBox:       box,
		AreaPx:     box.Area(),
		CentroidX:  cx,
		CentroidY:  cy,
		Confidence: confidence,
	}
}

// CentroidDistance returns the euclidean distance between two observation
// centroids.
func (w WindowObservation) CentroidDistance(o WindowObservation) float64 {
	dx := w.CentroidX - o.CentroidX
	dy := w.CentroidY - o.CentroidY
	return math.Sqrt(dx*dx + dy*dy)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
