package detection

import (
	"image"
	"math"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left pixel and (X2, Y2) the bottom-right pixel, both
// inclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the inclusive horizontal extent.
func (b Bounds) Width() int { return b.X2 - b.X1 + 1 }

// Height returns the inclusive vertical extent.
func (b Bounds) Height() int { return b.Y2 - b.Y1 + 1 }

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// component is one 8-connected foreground region.
type component struct {
	pixels []Point
	bounds Bounds
	// start is the first pixel in raster order; its west neighbor is
	// background, which is where boundary tracing begins.
	start Point
}

// findComponents groups foreground pixels into 8-connected components.
// When externalOnly is set, components enclosed by another component's
// hole are skipped.
func findComponents(mask [][]bool, width, height int, externalOnly bool) []component {
	var outside [][]bool
	if externalOnly {
		outside = outerBackground(mask, width, height)
	}

	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	components := make([]component, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y][x] || visited[y][x] {
				continue
			}
			c := component{start: Point{X: x, Y: y}, bounds: Bounds{X1: x, Y1: y, X2: x, Y2: y}}
			floodFill(mask, visited, x, y, width, height, &c)
			if externalOnly && !touchesOutside(c, outside, width, height) {
				continue
			}
			components = append(components, c)
		}
	}
	return components
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large regions. Uses 8-connectivity (includes diagonal neighbors).
func floodFill(mask, visited [][]bool, startX, startY, width, height int, c *component) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !mask[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		c.pixels = append(c.pixels, p)
		if p.X < c.bounds.X1 {
			c.bounds.X1 = p.X
		}
		if p.X > c.bounds.X2 {
			c.bounds.X2 = p.X
		}
		if p.Y > c.bounds.Y2 {
			c.bounds.Y2 = p.Y
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// outerBackground marks background pixels 4-connected to the image border.
func outerBackground(mask [][]bool, width, height int) [][]bool {
	outside := make([][]bool, height)
	for y := 0; y < height; y++ {
		outside[y] = make([]bool, width)
	}

	stack := make([]Point, 0, 2*(width+height))
	push := func(x, y int) {
		if x < 0 || x >= width || y < 0 || y >= height {
			return
		}
		if mask[y][x] || outside[y][x] {
			return
		}
		outside[y][x] = true
		stack = append(stack, Point{X: x, Y: y})
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X-1, p.Y)
		push(p.X+1, p.Y)
		push(p.X, p.Y-1)
		push(p.X, p.Y+1)
	}
	return outside
}

func touchesOutside(c component, outside [][]bool, width, height int) bool {
	for _, p := range c.pixels {
		if p.X == 0 || p.Y == 0 || p.X == width-1 || p.Y == height-1 {
			return true
		}
		if outside[p.Y][p.X-1] || outside[p.Y][p.X+1] || outside[p.Y-1][p.X] || outside[p.Y+1][p.X] {
			return true
		}
	}
	return false
}

// Moore neighborhood in clockwise order (y grows downward), starting west.
var mooreDirs = [8]Point{
	{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1},
}

func mooreIndex(d Point) int {
	for i, m := range mooreDirs {
		if m == d {
			return i
		}
	}
	return 0
}

// traceBoundary follows the outer boundary of the component containing
// start using Moore-neighbor tracing and returns the boundary pixels in
// clockwise order without repeating the first pixel.
func traceBoundary(mask [][]bool, start Point, width, height int, maxSteps int) []Point {
	fg := func(p Point) bool {
		return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height && mask[p.Y][p.X]
	}

	points := []Point{start}
	cur, back := start, 0
	var second Point
	haveSecond := false

	for step := 0; step < maxSteps; step++ {
		next, nextBack, ok := Point{}, 0, false
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			p := Point{X: cur.X + mooreDirs[d].X, Y: cur.Y + mooreDirs[d].Y}
			if fg(p) {
				prev := mooreDirs[(back+i-1)%8]
				q := Point{X: cur.X + prev.X, Y: cur.Y + prev.Y}
				next, nextBack, ok = p, mooreIndex(Point{X: q.X - p.X, Y: q.Y - p.Y}), true
				break
			}
		}
		if !ok {
			break
		}
		if cur == start && haveSecond && next == second {
			break
		}
		if !haveSecond {
			second, haveSecond = next, true
		}
		points = append(points, next)
		cur, back = next, nextBack
	}

	if len(points) > 1 && points[len(points)-1] == start {
		points = points[:len(points)-1]
	}
	return points
}

// polygonArea returns the shoelace area of a closed polygon.
func polygonArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	var sum float64
	for i, p := range points {
		q := points[(i+1)%len(points)]
		sum += float64(p.X*q.Y - q.X*p.Y)
	}
	return math.Abs(sum) / 2
}

// polygonPerimeter returns the length of a closed polygon.
func polygonPerimeter(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	var sum float64
	for i, p := range points {
		q := points[(i+1)%len(points)]
		sum += math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
	}
	return sum
}

// maskFromImage marks pixels whose red channel is at least half intensity.
func maskFromImage(img image.Image) ([][]bool, int, int) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			mask[y][x] = r>>8 >= 128
		}
	}
	return mask, width, height
}
