// ABOUTME: Session response mapping between buttons and direction judgements
// ABOUTME: Left/right map to faster/slower, fixed once per session
package response

import (
	"fmt"
	"math/rand/v2"
)

// Mapping assigns a direction to each button
type Mapping int

const (
	// LeftFaster means left = faster, right = slower
	LeftFaster Mapping = 1
	// LeftSlower means left = slower, right = faster
	LeftSlower Mapping = -1
)

// RandomMapping flips a fair coin for the session mapping
func RandomMapping(rng *rand.Rand) Mapping {
	if rng.Float64() < 0.5 {
		return LeftSlower
	}
	return LeftFaster
}

// ParseMapping accepts "left-faster", "left-slower" or the numeric forms 1 / -1
func ParseMapping(s string) (Mapping, error) {
	switch s {
	case "left-faster", "1", "+1":
		return LeftFaster, nil
	case "left-slower", "-1":
		return LeftSlower, nil
	}
	return 0, fmt.Errorf("unknown response mapping %q", s)
}

func (m Mapping) String() string {
	if m == LeftSlower {
		return "L:Slower R:Faster"
	}
	return "L:Faster R:Slower"
}
