package game

import (
	"fmt"
	"math"
)

// goldenAngle spaces consecutive hues far apart so small rosters get
// clearly distinct colors.
const goldenAngle = 137.508

// playerColor returns the HSL color for the index-th player to join.
func playerColor(index int) string {
	hue := math.Mod(float64(index)*goldenAngle, 360)
	return fmt.Sprintf("hsl(%d, 70%%, 45%%)", int(hue))
}
