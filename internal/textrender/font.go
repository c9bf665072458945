package textrender

// glyphWidth and glyphHeight are the fixed cell size of the bitmap atlas.
// Every canned status string (§4.G) is upper-case ASCII plus spaces, so the
// atlas only needs A-Z and the blank cell; anything else falls back to a
// blank glyph rather than failing the render.
const (
	glyphWidth  = 5
	glyphHeight = 7
)

// glyphRows holds one atlas entry: glyphHeight strings of glyphWidth
// characters, 'X' set and '.' clear. This mirrors the fixed-cell bitmap
// grid that font2rgba.go extracts from its source atlas (a row/column
// bitmap indexed by character), but hand-authored here since no font asset
// ships in this tree to bake from.
var glyphRows = map[rune][glyphHeight]string{
	' ': {".....", ".....", ".....", ".....", ".....", ".....", "....."},
	'A': {".XXX.", "X...X", "X...X", "XXXXX", "X...X", "X...X", "X...X"},
	'B': {"XXXX.", "X...X", "X...X", "XXXX.", "X...X", "X...X", "XXXX."},
	'C': {".XXXX", "X....", "X....", "X....", "X....", "X....", ".XXXX"},
	'D': {"XXXX.", "X...X", "X...X", "X...X", "X...X", "X...X", "XXXX."},
	'E': {"XXXXX", "X....", "X....", "XXXX.", "X....", "X....", "XXXXX"},
	'F': {"XXXXX", "X....", "X....", "XXXX.", "X....", "X....", "X...."},
	'G': {".XXXX", "X....", "X....", "X.XXX", "X...X", "X...X", ".XXX."},
	'H': {"X...X", "X...X", "X...X", "XXXXX", "X...X", "X...X", "X...X"},
	'I': {"XXXXX", "..X..", "..X..", "..X..", "..X..", "..X..", "XXXXX"},
	'J': {"..XXX", "...X.", "...X.", "...X.", "X..X.", "X..X.", ".XX.."},
	'K': {"X...X", "X..X.", "X.X..", "XX...", "X.X..", "X..X.", "X...X"},
	'L': {"X....", "X....", "X....", "X....", "X....", "X....", "XXXXX"},
	'M': {"X...X", "XX.XX", "X.X.X", "X...X", "X...X", "X...X", "X...X"},
	'N': {"X...X", "XX..X", "X.X.X", "X..XX", "X...X", "X...X", "X...X"},
	'O': {".XXX.", "X...X", "X...X", "X...X", "X...X", "X...X", ".XXX."},
	'P': {"XXXX.", "X...X", "X...X", "XXXX.", "X....", "X....", "X...."},
	'Q': {".XXX.", "X...X", "X...X", "X...X", "X.X.X", "X..X.", ".XX.X"},
	'R': {"XXXX.", "X...X", "X...X", "XXXX.", "X.X..", "X..X.", "X...X"},
	'S': {".XXXX", "X....", "X....", ".XXX.", "....X", "....X", "XXXX."},
	'T': {"XXXXX", "..X..", "..X..", "..X..", "..X..", "..X..", "..X.."},
	'U': {"X...X", "X...X", "X...X", "X...X", "X...X", "X...X", ".XXX."},
	'V': {"X...X", "X...X", "X...X", "X...X", "X...X", ".X.X.", "..X.."},
	'W': {"X...X", "X...X", "X...X", "X.X.X", "X.X.X", "XX.XX", "X...X"},
	'X': {"X...X", "X...X", ".X.X.", "..X..", ".X.X.", "X...X", "X...X"},
	'Y': {"X...X", "X...X", ".X.X.", "..X..", "..X..", "..X..", "..X.."},
	'Z': {"XXXXX", "....X", "...X.", "..X..", ".X...", "X....", "XXXXX"},
}

// glyphSet reports whether (col, row) is a lit pixel of r's glyph. Unknown
// runes render as blank rather than a placeholder box.
func glyphSet(r rune, col, row int) bool {
	rows, ok := glyphRows[r]
	if !ok {
		return false
	}
	return rows[row][col] == 'X'
}
