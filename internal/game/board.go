package game

// Pos addresses one board cell, zero-based.
type Pos struct {
	Row, Col int
}

type cell struct {
	owner  int64
	letter string
}

// Board is an N by N grid. A cell holds a letter and the account that owns
// it for rendering. Letters are written once and never change; ownership
// moves to whoever completes a triple through the cell.
type Board struct {
	size  int
	cells []cell
}

// NewBoard returns an empty size by size board.
func NewBoard(size int) *Board {
	return &Board{size: size, cells: make([]cell, size*size)}
}

// Size returns the board dimension.
func (b *Board) Size() int { return b.size }

func (b *Board) at(r, c int) *cell { return &b.cells[r*b.size+c] }

// Empty reports whether the cell at (r, c) holds no letter.
func (b *Board) Empty(r, c int) bool { return b.at(r, c).letter == "" }

// Letter returns the letter at (r, c), or "" for an empty cell.
func (b *Board) Letter(r, c int) string { return b.at(r, c).letter }

// Owner returns the account currently owning (r, c).
func (b *Board) Owner(r, c int) int64 { return b.at(r, c).owner }

// Place writes letter into (r, c) owned by account. The caller checks that
// the cell is empty.
func (b *Board) Place(r, c int, letter string, account int64) {
	*b.at(r, c) = cell{owner: account, letter: letter}
}

// Claim moves ownership of (r, c) to account, keeping the letter.
func (b *Board) Claim(r, c int, account int64) {
	b.at(r, c).owner = account
}

// letterAt reads a cell and returns "" outside the board.
func (b *Board) letterAt(r, c int) string {
	if r < 0 || r >= b.size || c < 0 || c >= b.size {
		return ""
	}
	return b.at(r, c).letter
}

// directions lists the 8 neighbor offsets. The first 4 cover one side of
// every axis, so negating them yields the opposite neighbor.
var directions = [8]Pos{
	{-1, -1}, {-1, 0}, {-1, 1}, {0, -1},
	{0, 1}, {1, -1}, {1, 0}, {1, 1},
}

// Triples counts the S-O-S lines that letter at (r, c) completes and
// returns the other two cells of every such line. The center cell is never
// read, so the count also answers what playing an empty cell would score.
// Every direction counts on its own; one move can score several triples.
func (b *Board) Triples(r, c int, letter string) (int, []Pos) {
	var count int
	var cells []Pos
	switch letter {
	case "S":
		for _, d := range directions {
			mid := Pos{Row: r + d.Row, Col: c + d.Col}
			far := Pos{Row: r + 2*d.Row, Col: c + 2*d.Col}
			if b.letterAt(mid.Row, mid.Col) == "O" && b.letterAt(far.Row, far.Col) == "S" {
				count++
				cells = append(cells, mid, far)
			}
		}
	case "O":
		for _, d := range directions[:4] {
			head := Pos{Row: r + d.Row, Col: c + d.Col}
			tail := Pos{Row: r - d.Row, Col: c - d.Col}
			if b.letterAt(head.Row, head.Col) == "S" && b.letterAt(tail.Row, tail.Col) == "S" {
				count++
				cells = append(cells, head, tail)
			}
		}
	}
	return count, cells
}

// FindGoodPlace scans the board in row-major order and returns the first
// empty cell and letter that would complete at least one triple. S is
// tried before O on every cell.
func (b *Board) FindGoodPlace() (row, col int, letter string, ok bool) {
	for r := range b.size {
		for c := range b.size {
			if !b.Empty(r, c) {
				continue
			}
			for _, l := range [2]string{"S", "O"} {
				if n, _ := b.Triples(r, c, l); n > 0 {
					return r, c, l, true
				}
			}
		}
	}
	return 0, 0, "", false
}
