package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leandeep/marker-engine/internal/marker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a starter marker set",
		Long: "Print a small marker set covering all four levels as JSON.\n" +
			"Pipe it straight into import: marker-engine sample | marker-engine import",
		Run: runSample,
	}

	RootCmd.AddCommand(cmd)
}

func sampleMarkers() []marker.Definition {
	ato := func(id, pattern, category, description string, valence float64) marker.Definition {
		d := marker.Definition{
			MarkerID:            id,
			Level:               marker.LevelATO,
			Pattern:             pattern,
			Category:            category,
			Description:         description,
			ConfidenceThreshold: marker.DefaultConfidenceThreshold,
			Weight:              marker.DefaultWeight,
		}
		if valence != 0 {
			d.Metadata = map[string]any{"valence": valence}
		}
		return d
	}
	rule := func(id string, level marker.Level, rule, category, description string) marker.Definition {
		return marker.Definition{
			MarkerID:            id,
			Level:               level,
			ActivationRule:      rule,
			Category:            category,
			Description:         description,
			ConfidenceThreshold: marker.DefaultConfidenceThreshold,
			Weight:              marker.DefaultWeight,
		}
	}

	escalation := rule("M_ESCALATION", marker.LevelMEMA,
		"C_EMOTIONAL_STRAIN AND DRIFT_HIGH",
		"psychology", "Sustained strain while affect drifts from baseline")
	escalation.ConfidenceThreshold = 0.7

	return []marker.Definition{
		ato("A_GREETING", `\b(hello|hi|hey)\b`, "social", "Greeting words", 0.3),
		ato("A_GRATITUDE", `\b(thanks|thank you|grateful)\b`, "social", "Expressed gratitude", 0.6),
		ato("A_SADNESS", `\b(sad|unhappy|depressed|down)\b`, "emotion", "Expressed sadness", -0.7),
		ato("A_ANGER", `\b(angry|furious|mad)\b`, "conflict", "Expressed anger", -0.8),
		ato("A_QUESTION", `\?`, "question", "Question mark", 0),
		rule("S_WARM_OPENING", marker.LevelSEM,
			"A_GREETING AND A_GRATITUDE",
			"social", "Greeting together with gratitude"),
		rule("S_NEGATIVE_TONE", marker.LevelSEM,
			"A_SADNESS OR A_ANGER",
			"emotion", "Any negative-affect atomic"),
		rule("S_PERSISTENT_QUERY", marker.LevelSEM,
			"A_QUESTION COUNT >= 3",
			"question", "Repeated questioning"),
		rule("C_EMOTIONAL_STRAIN", marker.LevelCLU,
			"S_NEGATIVE_TONE COUNT >= 2 WITHIN 20 EVENTS",
			"emotion", "Recurring negative tone in a short stretch"),
		rule("C_MIXED_SIGNALS", marker.LevelCLU,
			"ANY 2 OF (S_WARM_OPENING, S_NEGATIVE_TONE, S_PERSISTENT_QUERY)",
			"emotion", "Conflicting conversational signals"),
		escalation,
	}
}

func runSample(cmd *cobra.Command, args []string) {
	b, _ := json.MarshalIndent(sampleMarkers(), "", "  ")
	fmt.Println(string(b))
}
