package puzzle

import "github.com/victornm/bananaquiz/internal/domain"

// fallbackPuzzles is served when neither the puzzle source nor the offline cache can provide a puzzle.
var fallbackPuzzles = []domain.Puzzle{
	{ID: "fallback_1", Question: "https://images.pexels.com/photos/1093038/pexels-photo-1093038.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 5},
	{ID: "fallback_2", Question: "https://images.pexels.com/photos/2872755/pexels-photo-2872755.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 3},
	{ID: "fallback_3", Question: "https://images.pexels.com/photos/1093039/pexels-photo-1093039.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 7},
	{ID: "fallback_4", Question: "https://images.pexels.com/photos/2872756/pexels-photo-2872756.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 2},
	{ID: "fallback_5", Question: "https://images.pexels.com/photos/1093040/pexels-photo-1093040.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 8},
	{ID: "fallback_6", Question: "https://images.pexels.com/photos/2872757/pexels-photo-2872757.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 1},
	{ID: "fallback_7", Question: "https://images.pexels.com/photos/1093041/pexels-photo-1093041.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 9},
	{ID: "fallback_8", Question: "https://images.pexels.com/photos/2872758/pexels-photo-2872758.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 4},
	{ID: "fallback_9", Question: "https://images.pexels.com/photos/1093042/pexels-photo-1093042.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 6},
	{ID: "fallback_10", Question: "https://images.pexels.com/photos/2872759/pexels-photo-2872759.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 3},
	{ID: "fallback_11", Question: "https://images.pexels.com/photos/1093043/pexels-photo-1093043.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 5},
	{ID: "fallback_12", Question: "https://images.pexels.com/photos/2872760/pexels-photo-2872760.jpeg?auto=compress&cs=tinysrgb&w=400", Solution: 7},
}

// Fallbacks returns a copy of the static pool.
func Fallbacks() []domain.Puzzle {
	return append([]domain.Puzzle(nil), fallbackPuzzles...)
}
