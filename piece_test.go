package main

import (
	"math/rand"
	"testing"
)

func countOccupiedRows(f Field) int {
	n := 0
	for y := 0; y < FieldRows; y++ {
		for x := 0; x < FieldCols; x++ {
			if f[y][x] != "" {
				n++
				break
			}
		}
	}
	return n
}

func fillRow(f Field, y int, color string) {
	for x := 0; x < FieldCols; x++ {
		f[y][x] = color
	}
}

func TestSevenBagProperty(t *testing.T) {
	bag := NewPieceBag(rand.New(rand.NewSource(42)))

	// Every window of 7 draws from a fresh bag contains each type once
	for window := 0; window < 5; window++ {
		seen := make(map[PieceType]int)
		for i := 0; i < 7; i++ {
			p := bag.Next()
			seen[p.Type]++
		}
		if len(seen) != 7 {
			t.Fatalf("window %d: expected 7 distinct types, got %d", window, len(seen))
		}
		for typ, n := range seen {
			if n != 1 {
				t.Errorf("window %d: type %d drawn %d times", window, typ, n)
			}
		}
	}
}

func TestNewPieceSpawnPosition(t *testing.T) {
	for typ := PieceI; typ <= PieceL; typ++ {
		p := NewPiece(typ)
		if p.Y != 0 {
			t.Errorf("type %d: spawn Y = %d, want 0", typ, p.Y)
		}
		width := len(p.Shape[0])
		want := FieldCols/2 - width/2
		if p.X != want {
			t.Errorf("type %d: spawn X = %d, want %d", typ, p.X, want)
		}
		if p.Color == "" {
			t.Errorf("type %d: missing color", typ)
		}
	}
}

func TestCheckCollisionBounds(t *testing.T) {
	f := NewField()
	p := NewPiece(PieceO) // 2x2 block

	if f.CheckCollision(0, 0, p.Shape) {
		t.Error("empty field should not collide at origin")
	}
	if !f.CheckCollision(-1, 0, p.Shape) {
		t.Error("left overflow should collide")
	}
	if !f.CheckCollision(FieldCols-1, 0, p.Shape) {
		t.Error("right overflow should collide")
	}
	if !f.CheckCollision(0, FieldRows-1, p.Shape) {
		t.Error("bottom overflow should collide")
	}
	if f.CheckCollision(0, FieldRows-2, p.Shape) {
		t.Error("resting on the floor should not collide")
	}
}

func TestCheckCollisionNegativeRowsNeverCollide(t *testing.T) {
	f := NewField()
	f[0][4] = "red"
	f[0][5] = "red"

	p := NewPiece(PieceO)
	// Shape entirely above the visible grid: occupied row 0 is ignored
	if f.CheckCollision(4, -2, p.Shape) {
		t.Error("cells above the grid must never be collision sources")
	}
	// Shape overlapping the occupied top row does collide
	if !f.CheckCollision(4, 0, p.Shape) {
		t.Error("overlap with occupied visible cell should collide")
	}
}

func TestCheckCollisionOverlap(t *testing.T) {
	f := NewField()
	f[10][3] = "blue"

	p := NewPiece(PieceO)
	if !f.CheckCollision(3, 9, p.Shape) {
		t.Error("overlap with occupied cell should collide")
	}
	if f.CheckCollision(5, 9, p.Shape) {
		t.Error("adjacent placement should not collide")
	}
}

func TestMergePiece(t *testing.T) {
	f := NewField()
	p := NewPiece(PieceO)
	p.X = 0
	p.Y = FieldRows - 2
	f.MergePiece(p)

	for _, pos := range [][2]int{{FieldRows - 2, 0}, {FieldRows - 2, 1}, {FieldRows - 1, 0}, {FieldRows - 1, 1}} {
		if f[pos[0]][pos[1]] != p.Color {
			t.Errorf("cell (%d,%d) = %q, want %q", pos[0], pos[1], f[pos[0]][pos[1]], p.Color)
		}
	}
}

func TestClearLinesSingle(t *testing.T) {
	f := NewField()
	fillRow(f, FieldRows-1, "red")
	f[FieldRows-2][0] = "blue"

	if n := f.ClearLines(); n != 1 {
		t.Fatalf("cleared = %d, want 1", n)
	}
	// The partial row shifted down into the bottom row
	if f[FieldRows-1][0] != "blue" {
		t.Error("row above should shift into the cleared row")
	}
	for x := 1; x < FieldCols; x++ {
		if f[FieldRows-1][x] != "" {
			t.Errorf("bottom row col %d should be empty after shift", x)
		}
	}
	for x := 0; x < FieldCols; x++ {
		if f[0][x] != "" {
			t.Error("top row must be empty after a clear")
		}
	}
}

func TestClearLinesAdjacentFullRows(t *testing.T) {
	// Two adjacent full rows exercise the re-examine-same-index path
	f := NewField()
	fillRow(f, FieldRows-1, "red")
	fillRow(f, FieldRows-2, "green")
	f[FieldRows-3][7] = "blue"

	if n := f.ClearLines(); n != 2 {
		t.Fatalf("cleared = %d, want 2", n)
	}
	if f[FieldRows-1][7] != "blue" {
		t.Error("partial row should land on the floor after double clear")
	}
}

func TestClearLinesFourAtOnce(t *testing.T) {
	f := NewField()
	for i := 1; i <= 4; i++ {
		fillRow(f, FieldRows-i, "cyan")
	}
	if n := f.ClearLines(); n != 4 {
		t.Fatalf("cleared = %d, want 4", n)
	}
	if got := countOccupiedRows(f); got != 0 {
		t.Errorf("occupied rows = %d, want 0", got)
	}
}

func TestClearLinesNeverIncreasesOccupiedRows(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		f := NewField()
		for y := 0; y < FieldRows; y++ {
			for x := 0; x < FieldCols; x++ {
				if rng.Float64() < 0.6 {
					f[y][x] = "gray"
				}
			}
		}
		before := countOccupiedRows(f)
		f.ClearLines()
		if after := countOccupiedRows(f); after > before {
			t.Fatalf("trial %d: occupied rows grew %d -> %d", trial, before, after)
		}
	}
}

func TestAddGarbageLines(t *testing.T) {
	f := NewField()
	f[0][0] = "top"
	f[1][1] = "second"
	f[2][2] = "third"

	hole := 4
	f.AddGarbageLines(2, func() int { return hole })

	if len(f) != FieldRows {
		t.Fatalf("row count = %d, want %d", len(f), FieldRows)
	}
	// Top two rows discarded: "third" is now on top
	if f[0][2] != "third" {
		t.Error("rows should shift up by the garbage count")
	}
	// Bottom two rows: solid except the hole column
	for _, y := range []int{FieldRows - 1, FieldRows - 2} {
		for x := 0; x < FieldCols; x++ {
			if x == hole {
				if f[y][x] != "" {
					t.Errorf("row %d hole col should be empty", y)
				}
			} else if f[y][x] == "" {
				t.Errorf("row %d col %d should be garbage", y, x)
			}
		}
	}
}

func TestScoreForLines(t *testing.T) {
	want := map[int]int{0: 0, 1: 100, 2: 300, 3: 500, 4: 800, 5: 0, -1: 0}
	for lines, score := range want {
		if got := ScoreForLines(lines); got != score {
			t.Errorf("ScoreForLines(%d) = %d, want %d", lines, got, score)
		}
	}
}

func TestRotateShapeFullCycle(t *testing.T) {
	p := NewPiece(PieceT)
	s := p.Shape
	for i := 0; i < 4; i++ {
		s = RotateShape(s)
	}
	for y := range p.Shape {
		for x := range p.Shape[y] {
			if s[y][x] != p.Shape[y][x] {
				t.Fatal("four rotations should restore the original shape")
			}
		}
	}
}
