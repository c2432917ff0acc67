// Package modelrouter maps a pipeline stage, user preference, and
// depth tier to a concrete model id, a cost estimate, and an ordered
// fallback chain. It is a pure function of its tables and safe to call
// concurrently.
package modelrouter

import (
	"fmt"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/runconfig"
)

// Selection is the routing decision for one stage invocation.
type Selection struct {
	ModelID               string   `json:"modelId"`
	EstimatedInputTokens  int      `json:"estimatedInputTokens"`
	EstimatedOutputTokens int      `json:"estimatedOutputTokens"`
	EstimatedCostUSD      float64  `json:"estimatedCostUSD"`
	FallbackChain         []string `json:"fallbackChain"`
}

// rankings lists candidate models per stage and preference, best
// first. Every list has at least two entries so the fallback chain is
// never empty. Economy heads must never price above premium heads for
// the same stage; TestSelect_EconomyNeverCostsMoreThanPremium holds
// the table to that.
var rankings = map[domain.Stage]map[domain.Preference][]string{
	domain.StageDecompose: {
		domain.PreferenceAuto:    {"gpt-4.1-mini", "gpt-4o-mini", "gpt-4.1"},
		domain.PreferenceEconomy: {"gpt-4.1-nano", "gpt-4o-mini", "gpt-4.1-mini"},
		domain.PreferencePremium: {"gpt-4.1", "gpt-4o", "gpt-4.1-mini"},
	},
	domain.StageSearch: {
		domain.PreferenceAuto:    {"gpt-4.1-nano", "gpt-4o-mini"},
		domain.PreferenceEconomy: {"gpt-4.1-nano", "gpt-4o-mini"},
		domain.PreferencePremium: {"gpt-4.1-mini", "gpt-4o-mini"},
	},
	domain.StageEvaluate: {
		domain.PreferenceAuto:    {"gpt-4o-mini", "gpt-4.1-mini", "gpt-4.1"},
		domain.PreferenceEconomy: {"gpt-4.1-nano", "gpt-4o-mini", "gpt-4.1-mini"},
		domain.PreferencePremium: {"gpt-4.1-mini", "gpt-4.1", "gpt-4o"},
	},
	domain.StageExtract: {
		domain.PreferenceAuto:    {"gpt-4.1-nano", "gpt-4o-mini"},
		domain.PreferenceEconomy: {"gpt-4.1-nano", "gpt-4o-mini"},
		domain.PreferencePremium: {"gpt-4o-mini", "gpt-4.1-mini"},
	},
	domain.StageSynthesize: {
		domain.PreferenceAuto:    {"gpt-4.1", "gpt-4o", "gpt-4.1-mini"},
		domain.PreferenceEconomy: {"gpt-4.1-mini", "gpt-4o-mini", "gpt-4.1"},
		domain.PreferencePremium: {"gpt-4o", "gpt-4.1", "o4-mini"},
	},
	domain.StagePostProcess: {
		domain.PreferenceAuto:    {"o4-mini", "gpt-4.1-mini", "gpt-4.1"},
		domain.PreferenceEconomy: {"gpt-4.1-mini", "gpt-4o-mini", "o4-mini"},
		domain.PreferencePremium: {"o4-mini", "gpt-4.1", "gpt-4o"},
	},
}

// tokenEstimates holds baseline (input, output) token estimates per
// stage at normal depth.
var tokenEstimates = map[domain.Stage][2]int{
	domain.StageDecompose:   {1200, 600},
	domain.StageSearch:      {400, 200},
	domain.StageEvaluate:    {6000, 1500},
	domain.StageExtract:     {800, 200},
	domain.StageSynthesize:  {14000, 6000},
	domain.StagePostProcess: {8000, 2500},
}

// depthMultipliers scale token estimates by depth tier.
var depthMultipliers = map[domain.Depth]float64{
	domain.DepthQuick:      0.5,
	domain.DepthNormal:     1.0,
	domain.DepthDeep:       2.0,
	domain.DepthExhaustive: 3.5,
}

// Select resolves the model for one stage invocation.
//
// When pref is custom and customModels carries an id for the stage,
// that id wins outright; the fallback chain is still computed from the
// stage's auto ranking minus the chosen id. Per-run config overrides
// may force a model via the dotted key "models.<stage>".
func Select(
	stage domain.Stage,
	pref domain.Preference,
	depth domain.Depth,
	overrides map[string]any,
	customModels map[string]string,
) (Selection, error) {
	if !ValidStage(stage) {
		return Selection{}, fmt.Errorf("unknown stage %q", stage)
	}
	if !domain.ValidPreference(pref) {
		return Selection{}, fmt.Errorf("unknown preference %q", pref)
	}
	mult, ok := depthMultipliers[depth]
	if !ok {
		return Selection{}, fmt.Errorf("unknown depth %q", depth)
	}

	forced := ""
	if pref == domain.PreferenceCustom {
		forced = customModels[string(stage)]
	}
	if forced == "" {
		if v, isStr := runconfig.Value(overrides, "models."+string(stage)).(string); isStr && v != "" {
			forced = v
		}
	}

	ranked := rankings[stage][pref]
	if len(ranked) == 0 {
		// Custom without a mapped id falls back to the auto ranking.
		ranked = rankings[stage][domain.PreferenceAuto]
	}

	modelID := ranked[0]
	if forced != "" {
		modelID = forced
	}

	chain := make([]string, 0, len(ranked))
	for _, m := range ranked {
		if m != modelID {
			chain = append(chain, m)
		}
	}
	if len(chain) == 0 {
		chain = append(chain, rankings[stage][domain.PreferenceAuto][0])
	}

	est := tokenEstimates[stage]
	in := int(float64(est[0]) * mult)
	out := int(float64(est[1]) * mult)

	return Selection{
		ModelID:               modelID,
		EstimatedInputTokens:  in,
		EstimatedOutputTokens: out,
		EstimatedCostUSD:      Cost(modelID, in, out),
		FallbackChain:         chain,
	}, nil
}

// SelectAll resolves every known stage, for up-front cost estimation
// before a run starts.
func SelectAll(pref domain.Preference, depth domain.Depth) (map[domain.Stage]Selection, error) {
	out := make(map[domain.Stage]Selection, len(rankings))
	for _, stage := range domain.Stages() {
		sel, err := Select(stage, pref, depth, nil, nil)
		if err != nil {
			return nil, err
		}
		out[stage] = sel
	}
	return out, nil
}

// ValidStage reports whether the router has a ranking for stage.
func ValidStage(stage domain.Stage) bool {
	_, ok := rankings[stage]
	return ok
}
