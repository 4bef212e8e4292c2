package volume

import "math"

// Region is an axis-aligned, inclusive box over signed 32-bit voxel
// coordinates.
type Region struct {
	LowerX, LowerY, LowerZ int32
	UpperX, UpperY, UpperZ int32
}

// NewRegion builds a Region from two corners, ordering them so that
// Lower <= Upper on every axis.
func NewRegion(lower, upper [3]int32) Region {
	r := Region{
		LowerX: lower[0], LowerY: lower[1], LowerZ: lower[2],
		UpperX: upper[0], UpperY: upper[1], UpperZ: upper[2],
	}
	if r.LowerX > r.UpperX {
		r.LowerX, r.UpperX = r.UpperX, r.LowerX
	}
	if r.LowerY > r.UpperY {
		r.LowerY, r.UpperY = r.UpperY, r.LowerY
	}
	if r.LowerZ > r.UpperZ {
		r.LowerZ, r.UpperZ = r.UpperZ, r.LowerZ
	}
	return r
}

func (r Region) WidthInVoxels() int64  { return int64(r.UpperX) - int64(r.LowerX) + 1 }
func (r Region) HeightInVoxels() int64 { return int64(r.UpperY) - int64(r.LowerY) + 1 }
func (r Region) DepthInVoxels() int64  { return int64(r.UpperZ) - int64(r.LowerZ) + 1 }

// ContainsPoint reports whether (x,y,z) lies within the inclusive box.
func (r Region) ContainsPoint(x, y, z int32) bool {
	return x >= r.LowerX && x <= r.UpperX &&
		y >= r.LowerY && y <= r.UpperY &&
		z >= r.LowerZ && z <= r.UpperZ
}

// Intersect returns the overlap of r and other. The ok result is false if
// the two regions do not overlap, in which case the returned Region is the
// zero value.
func (r Region) Intersect(other Region) (Region, bool) {
	lx := maxI32(r.LowerX, other.LowerX)
	ly := maxI32(r.LowerY, other.LowerY)
	lz := maxI32(r.LowerZ, other.LowerZ)
	ux := minI32(r.UpperX, other.UpperX)
	uy := minI32(r.UpperY, other.UpperY)
	uz := minI32(r.UpperZ, other.UpperZ)
	if lx > ux || ly > uy || lz > uz {
		return Region{}, false
	}
	return Region{lx, ly, lz, ux, uy, uz}, true
}

// Dilate grows the region by amount voxels on every axis, in both
// directions.
func (r Region) Dilate(amount int32) Region {
	return Region{
		LowerX: r.LowerX - amount, LowerY: r.LowerY - amount, LowerZ: r.LowerZ - amount,
		UpperX: r.UpperX + amount, UpperY: r.UpperY + amount, UpperZ: r.UpperZ + amount,
	}
}

// Erode shrinks the region by amount voxels on every axis, in both
// directions. It does not guard against the region inverting; callers that
// erode past the region's extent get a region with Lower > Upper.
func (r Region) Erode(amount int32) Region {
	return r.Dilate(-amount)
}

// ShiftedByBlockPower returns the block-coordinate region obtained by an
// arithmetic right shift of both corners by shift bits, the inverse of the
// block-to-voxel expansion used by block coordinates.
func (r Region) ShiftedByBlockPower(shift uint) Region {
	return Region{
		LowerX: r.LowerX >> shift, LowerY: r.LowerY >> shift, LowerZ: r.LowerZ >> shift,
		UpperX: r.UpperX >> shift, UpperY: r.UpperY >> shift, UpperZ: r.UpperZ >> shift,
	}
}

func (r Region) LongestSide() int64 {
	w, h, d := r.WidthInVoxels(), r.HeightInVoxels(), r.DepthInVoxels()
	return maxI64(maxI64(w, h), d)
}

func (r Region) ShortestSide() int64 {
	w, h, d := r.WidthInVoxels(), r.HeightInVoxels(), r.DepthInVoxels()
	return minI64(minI64(w, h), d)
}

func (r Region) DiagonalLength() float64 {
	w, h, d := float64(r.WidthInVoxels()), float64(r.HeightInVoxels()), float64(r.DepthInVoxels())
	return math.Sqrt(w*w + h*h + d*d)
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
