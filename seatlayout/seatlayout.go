package seatlayout

import "errors"

var (
	ErrInvalidSeatCount = errors.New("seatlayout: invalid seat count")
	ErrInvalidSeat      = errors.New("seatlayout: invalid seat index")
)

const (
	UnsetSeat = -1

	MinSeatCount = 2
	MaxSeatCount = 10
)

// Point is a table anchor in unit space: x, y in [0, 1], origin at top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// selfAnchor is the bottom-center anchor, always assigned to the viewer's own seat.
var selfAnchor = Point{X: 0.5, Y: 0.92}

// potAnchor is the fixed chip-flight destination at the middle of the felt.
var potAnchor = Point{X: 0.5, Y: 0.45}

func PotAnchor() Point {
	return potAnchor
}

/*
Project maps an absolute seat index to a viewer-relative anchor.
  - offset = (seat - viewer + seatCount) mod seatCount
  - offset 0 is always the bottom-center anchor (the viewer's own seat)
  - remaining offsets follow a fixed clockwise sequence per seat count

An unseated observer passes viewerSeat = UnsetSeat and gets a seat-0-relative
layout. Deterministic: no randomness, stable under re-render.
*/
func Project(seat, viewerSeat, seatCount int) (Point, error) {
	if seatCount < MinSeatCount || seatCount > MaxSeatCount {
		return Point{}, ErrInvalidSeatCount
	}
	if seat < 0 || seat >= seatCount {
		return Point{}, ErrInvalidSeat
	}

	if viewerSeat == UnsetSeat {
		viewerSeat = 0
	}
	if viewerSeat < 0 || viewerSeat >= seatCount {
		return Point{}, ErrInvalidSeat
	}

	offset := ((seat - viewerSeat) + seatCount) % seatCount
	return newAnchors(seatCount)[offset], nil
}

// Scale maps a unit-space anchor to viewport coordinates.
func Scale(p Point, width, height float64) Point {
	return Point{X: p.X * width, Y: p.Y * height}
}

// newAnchors returns the clockwise anchor sequence for a seat count, starting
// from the viewer's bottom-center anchor.
func newAnchors(seatCount int) []Point {
	switch seatCount {
	case 10:
		return []Point{
			selfAnchor,
			{X: 0.22, Y: 0.86},
			{X: 0.06, Y: 0.66},
			{X: 0.06, Y: 0.38},
			{X: 0.22, Y: 0.15},
			{X: 0.42, Y: 0.08},
			{X: 0.58, Y: 0.08},
			{X: 0.78, Y: 0.15},
			{X: 0.94, Y: 0.38},
			{X: 0.94, Y: 0.70},
		}
	case 9:
		return []Point{
			selfAnchor,
			{X: 0.20, Y: 0.84},
			{X: 0.06, Y: 0.60},
			{X: 0.10, Y: 0.28},
			{X: 0.32, Y: 0.10},
			{X: 0.68, Y: 0.10},
			{X: 0.90, Y: 0.28},
			{X: 0.94, Y: 0.60},
			{X: 0.80, Y: 0.84},
		}
	case 8:
		return []Point{
			selfAnchor,
			{X: 0.18, Y: 0.82},
			{X: 0.06, Y: 0.52},
			{X: 0.22, Y: 0.14},
			{X: 0.50, Y: 0.08},
			{X: 0.78, Y: 0.14},
			{X: 0.94, Y: 0.52},
			{X: 0.82, Y: 0.82},
		}
	case 7:
		return []Point{
			selfAnchor,
			{X: 0.14, Y: 0.78},
			{X: 0.06, Y: 0.40},
			{X: 0.32, Y: 0.10},
			{X: 0.68, Y: 0.10},
			{X: 0.94, Y: 0.40},
			{X: 0.86, Y: 0.78},
		}
	case 6:
		return []Point{
			selfAnchor,
			{X: 0.12, Y: 0.72},
			{X: 0.12, Y: 0.24},
			{X: 0.50, Y: 0.08},
			{X: 0.88, Y: 0.24},
			{X: 0.88, Y: 0.72},
		}
	case 5:
		return []Point{
			selfAnchor,
			{X: 0.10, Y: 0.62},
			{X: 0.28, Y: 0.12},
			{X: 0.72, Y: 0.12},
			{X: 0.90, Y: 0.62},
		}
	case 4:
		return []Point{
			selfAnchor,
			{X: 0.08, Y: 0.45},
			{X: 0.50, Y: 0.08},
			{X: 0.92, Y: 0.45},
		}
	case 3:
		return []Point{
			selfAnchor,
			{X: 0.22, Y: 0.16},
			{X: 0.78, Y: 0.16},
		}
	case 2:
		return []Point{
			selfAnchor,
			{X: 0.50, Y: 0.08},
		}
	default:
		return make([]Point, 0)
	}
}
