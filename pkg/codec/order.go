package codec

import "github.com/james-see/accordionctl/pkg/keyboard"

// Wire order follows the button-matrix wiring of the controller, so the
// tables below are fixed data rather than something derived from the layout.

// Right-hand board, 1-based physical indices
var (
	right81Connectors = [...]int{66, 17, 34, 50, 67}
	right81Bases      = [...]int{1, 18, 35, 51, 68}
	right81Trailing   = [...]int{15, 32, 49, 65, 16, 33}
)

const right81Passes = 14

// Left-hand board: 6 rows of 16 sent column by column
const (
	left96Stride = 16
	left96Modulo = 95
)

var traversal = map[keyboard.Layout][]int{
	keyboard.LayoutRight81: buildRight81Order(),
	keyboard.LayoutLeft96:  buildLeft96Order(),
}

func buildRight81Order() []int {
	order := make([]int, 0, 81)
	for _, i := range right81Connectors {
		order = append(order, i-1)
	}
	for pass := 0; pass < right81Passes; pass++ {
		for _, base := range right81Bases {
			order = append(order, base+pass-1)
		}
	}
	for _, i := range right81Trailing {
		order = append(order, i-1)
	}
	return order
}

func buildLeft96Order() []int {
	order := make([]int, 96)
	for i := 0; i < left96Modulo; i++ {
		order[i] = i * left96Stride % left96Modulo
	}
	// the stride cycle revisits slot 0 at step 95, the last slot is fixed
	order[left96Modulo] = left96Modulo
	return order
}

// TraversalOrder returns the 0-based key slots in the order they appear on the wire
func TraversalOrder(layout keyboard.Layout) []int {
	return append([]int(nil), traversal[layout]...)
}
