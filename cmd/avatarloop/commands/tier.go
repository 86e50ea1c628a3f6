package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/normanking/avatarloop/internal/tier"
)

var tierJSON bool

var tierCmd = &cobra.Command{
	Use:   "tier",
	Short: "Print the detected performance tier",
	Long: `Probe the host, apply config overrides and print the resulting tier bundle.

Example:
  avatarloop tier
  AVATARLOOP_DEVICE_TIER=low avatarloop tier --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := store.Config()
		hints := tier.HostHints()
		bundle := cfg.Bundle(hints)

		if tierJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"hints":  hints,
				"tier":   bundle.Tier.String(),
				"bundle": bundle,
			})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "HINTS\tmemory %.1f GB, %d cores\n", hints.MemoryGB, hints.Cores)
		if cfg.Device.Tier != "" {
			fmt.Fprintf(w, "OVERRIDE\t%s\n", cfg.Device.Tier)
		}
		fmt.Fprintf(w, "TIER\t%s\n", bundle.Tier)
		fmt.Fprintf(w, "TARGET FPS\t%.0f\n", bundle.TargetFPS)
		fmt.Fprintf(w, "BREATHING\t%.2f Hz, amplitude %.3f\n", bundle.BreathSpeed, bundle.BreathAmplitude)
		fmt.Fprintf(w, "BLINK\t%.1f-%.1f s, hold %.2f s\n", bundle.BlinkMin, bundle.BlinkMax, bundle.BlinkHold)
		fmt.Fprintf(w, "EMOTION RATE\t%.1f /s\n", bundle.EmotionRate)
		fmt.Fprintf(w, "RENDER\tpixel ratio %.1f, shadows %d, antialias %t\n",
			bundle.MaxPixelRatio, bundle.ShadowMapSize, bundle.Antialias)
		return w.Flush()
	},
}

func init() {
	tierCmd.Flags().BoolVar(&tierJSON, "json", false, "print JSON")
}
