package status

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/michaeltrefry/Yapplr-sub001/internal/conf"
	"github.com/michaeltrefry/Yapplr-sub001/internal/notification"
)

// Command returns a cobra command that probes the configured providers and
// reports pipeline availability
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider availability and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, cleanup, err := notification.FromConfig(settings, nil, nil)
			if err != nil {
				return fmt.Errorf("failed to build notification gateway: %w", err)
			}
			defer func() { _ = cleanup() }()

			ctx := cmd.Context()
			providerStatus := gateway.GetProviderStatus(ctx)

			names := make([]string, 0, len(providerStatus))
			for name := range providerStatus {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Providers:")
			for _, name := range names {
				state := "unavailable"
				if providerStatus[name] {
					state = "available"
				}
				fmt.Fprintf(out, "  %-20s %s\n", name, state)
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "  (none configured)")
			}

			if gateway.IsAvailable(ctx) {
				fmt.Fprintln(out, "Pipeline: available")
			} else {
				fmt.Fprintln(out, "Pipeline: unavailable")
			}
			return nil
		},
	}
}
