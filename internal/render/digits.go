package render

// glyphWidth and glyphHeight are the pixel extents of a built-in digit glyph.
const (
	glyphWidth  = 5
	glyphHeight = 7
)

// digitGlyphs holds one 5x7 bitmap per decimal digit, one string per row.
var digitGlyphs = [10][glyphHeight]string{
	{ // 0
		".###.",
		"#...#",
		"#..##",
		"#.#.#",
		"##..#",
		"#...#",
		".###.",
	},
	{ // 1
		"..#..",
		".##..",
		"..#..",
		"..#..",
		"..#..",
		"..#..",
		".###.",
	},
	{ // 2
		".###.",
		"#...#",
		"....#",
		"...#.",
		"..#..",
		".#...",
		"#####",
	},
	{ // 3
		"#####",
		"...#.",
		"..#..",
		"...#.",
		"....#",
		"#...#",
		".###.",
	},
	{ // 4
		"...#.",
		"..##.",
		".#.#.",
		"#..#.",
		"#####",
		"...#.",
		"...#.",
	},
	{ // 5
		"#####",
		"#....",
		"####.",
		"....#",
		"....#",
		"#...#",
		".###.",
	},
	{ // 6
		"..##.",
		".#...",
		"#....",
		"####.",
		"#...#",
		"#...#",
		".###.",
	},
	{ // 7
		"#####",
		"....#",
		"...#.",
		"..#..",
		".#...",
		".#...",
		".#...",
	},
	{ // 8
		".###.",
		"#...#",
		"#...#",
		".###.",
		"#...#",
		"#...#",
		".###.",
	},
	{ // 9
		".###.",
		"#...#",
		"#...#",
		".####",
		"....#",
		"...#.",
		".##..",
	},
}

func glyphLit(digit, x, y int) bool {
	return digitGlyphs[digit%10][y][x] == '#'
}
