// ABOUTME: Trial plan for a session
// ABOUTME: Expands block types into per-trial context records
package session

import (
	"fmt"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
)

// Block types
const (
	BlockStationary = 0
	BlockSlowWalk   = 1
	BlockNatural    = 2
)

// BuildPlan lays out trialsPerBlock trials for each block type in order.
// Trial indices run across the whole session.
func BuildPlan(blockTypes []int, trialsPerBlock int) ([]stimulus.TrialInfo, error) {
	if trialsPerBlock <= 0 {
		return nil, fmt.Errorf("%w: trials per block must be > 0", stimulus.ErrInvalidConfig)
	}

	plan := make([]stimulus.TrialInfo, 0, len(blockTypes)*trialsPerBlock)
	for block, bt := range blockTypes {
		if bt < BlockStationary || bt > BlockNatural {
			return nil, fmt.Errorf("%w: block type %d", stimulus.ErrInvalidConfig, bt)
		}
		for i := 0; i < trialsPerBlock; i++ {
			plan = append(plan, stimulus.TrialInfo{
				Index:      len(plan),
				BlockID:    block,
				TrialID:    i,
				BlockType:  bt,
				Stationary: bt == BlockStationary,
			})
		}
	}
	return plan, nil
}
