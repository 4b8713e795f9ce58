package main

import "math/rand"

const (
	FieldRows = 20
	FieldCols = 10
)

// Line-clear scoring: index = lines cleared in one merge
var lineScores = [5]int{0, 100, 300, 500, 800}

// ScoreForLines returns the points awarded for clearing n lines at once
func ScoreForLines(n int) int {
	if n < 0 || n >= len(lineScores) {
		return 0
	}
	return lineScores[n]
}

// Field is a 20-row by 10-column grid of cell colors ("" = empty).
// Row 0 is the top; rows grow downward.
type Field [][]string

// NewField returns an empty field
func NewField() Field {
	f := make(Field, FieldRows)
	for y := range f {
		f[y] = make([]string, FieldCols)
	}
	return f
}

// Clone returns a deep copy of the field
func (f Field) Clone() Field {
	c := make(Field, len(f))
	for y := range f {
		c[y] = make([]string, len(f[y]))
		copy(c[y], f[y])
	}
	return c
}

// Shape is a piece footprint; true cells are filled
type Shape [][]bool

// PieceType indexes the 7 canonical tetrominoes
type PieceType int

const (
	PieceI PieceType = iota
	PieceO
	PieceT
	PieceS
	PieceZ
	PieceJ
	PieceL
)

var pieceShapes = map[PieceType]Shape{
	PieceI: {
		{false, false, false, false},
		{true, true, true, true},
		{false, false, false, false},
		{false, false, false, false},
	},
	PieceO: {
		{true, true},
		{true, true},
	},
	PieceT: {
		{false, true, false},
		{true, true, true},
		{false, false, false},
	},
	PieceS: {
		{false, true, true},
		{true, true, false},
		{false, false, false},
	},
	PieceZ: {
		{true, true, false},
		{false, true, true},
		{false, false, false},
	},
	PieceJ: {
		{true, false, false},
		{true, true, true},
		{false, false, false},
	},
	PieceL: {
		{false, false, true},
		{true, true, true},
		{false, false, false},
	},
}

var pieceColors = map[PieceType]string{
	PieceI: "cyan",
	PieceO: "yellow",
	PieceT: "purple",
	PieceS: "green",
	PieceZ: "red",
	PieceJ: "blue",
	PieceL: "orange",
}

const garbageColor = "gray"

// Piece is a tetromino positioned on a field. X/Y address the top-left
// cell of the shape matrix; Y may be negative while spawning.
type Piece struct {
	Type  PieceType
	Shape Shape
	X, Y  int
	Color string
}

// NewPiece returns a fresh piece at the spawn column (near grid center, top row)
func NewPiece(t PieceType) *Piece {
	src := pieceShapes[t]
	shape := make(Shape, len(src))
	for i := range src {
		shape[i] = make([]bool, len(src[i]))
		copy(shape[i], src[i])
	}
	return &Piece{
		Type:  t,
		Shape: shape,
		X:     FieldCols/2 - len(shape[0])/2,
		Y:     0,
		Color: pieceColors[t],
	}
}

// RotateShape returns the shape rotated 90 degrees clockwise
func RotateShape(s Shape) Shape {
	n := len(s)
	out := make(Shape, n)
	for i := range out {
		out[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < len(s[i]); j++ {
			out[j][n-1-i] = s[i][j]
		}
	}
	return out
}

// Rotate rotates the piece 90 degrees clockwise in place
func (p *Piece) Rotate() {
	p.Shape = RotateShape(p.Shape)
}

// CheckCollision reports whether placing shape with its top-left at
// (x, y) leaves the 10-wide/20-tall bounds or overlaps an occupied
// cell. Cells above the visible grid (negative row) never collide, so
// spawn overlap only kills a piece that cannot descend at all.
func (f Field) CheckCollision(x, y int, shape Shape) bool {
	for sy, row := range shape {
		for sx, filled := range row {
			if !filled {
				continue
			}
			cx := x + sx
			cy := y + sy
			if cx < 0 || cx >= FieldCols || cy >= FieldRows {
				return true
			}
			if cy >= 0 && f[cy][cx] != "" {
				return true
			}
		}
	}
	return false
}

// MergePiece writes the piece's filled cells into the field at its
// color. No validation: the caller guarantees legality.
func (f Field) MergePiece(p *Piece) {
	f.mergeAt(p.X, p.Y, p.Shape, p.Color)
}

func (f Field) mergeAt(x, y int, shape Shape, color string) {
	for sy, row := range shape {
		for sx, filled := range row {
			if !filled {
				continue
			}
			cx := x + sx
			cy := y + sy
			if cy >= 0 && cy < FieldRows && cx >= 0 && cx < FieldCols {
				f[cy][cx] = color
			}
		}
	}
}

// ClearLines removes every fully occupied row, inserting empty rows at
// the top. Scans bottom-up and re-examines the same index after a
// removal since rows above shift down. Returns the number cleared.
func (f Field) ClearLines() int {
	cleared := 0
	for y := FieldRows - 1; y >= 0; y-- {
		full := true
		for x := 0; x < FieldCols; x++ {
			if f[y][x] == "" {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		cleared++
		for yy := y; yy > 0; yy-- {
			copy(f[yy], f[yy-1])
		}
		for x := 0; x < FieldCols; x++ {
			f[0][x] = ""
		}
		y++ // rows shifted down, recheck this index
	}
	return cleared
}

// AddGarbageLines discards the topmost n rows and appends n solid
// bottom rows, each with one empty cell at the given hole column
func (f Field) AddGarbageLines(n int, holeAt func() int) {
	for i := 0; i < n; i++ {
		hole := holeAt()
		for y := 0; y < FieldRows-1; y++ {
			copy(f[y], f[y+1])
		}
		bottom := f[FieldRows-1]
		for x := 0; x < FieldCols; x++ {
			if x == hole {
				bottom[x] = ""
			} else {
				bottom[x] = garbageColor
			}
		}
	}
}

// PieceBag is a 7-bag randomizer: each refill is a uniform shuffle of
// the 7 piece types, so no piece starves for more than 12 draws.
type PieceBag struct {
	rng *rand.Rand
	bag []PieceType
}

// NewPieceBag returns a bag drawing from the given source
func NewPieceBag(rng *rand.Rand) *PieceBag {
	return &PieceBag{rng: rng}
}

// Next pops the next piece, refilling the bag when it empties
func (b *PieceBag) Next() *Piece {
	if len(b.bag) == 0 {
		b.Refill()
	}
	t := b.bag[0]
	b.bag = b.bag[1:]
	return NewPiece(t)
}

// Refill resets the bag to a shuffled permutation of all 7 types
func (b *PieceBag) Refill() {
	b.bag = []PieceType{PieceI, PieceO, PieceT, PieceS, PieceZ, PieceJ, PieceL}
	for i := len(b.bag) - 1; i > 0; i-- {
		j := b.rng.Intn(i + 1)
		b.bag[i], b.bag[j] = b.bag[j], b.bag[i]
	}
}
