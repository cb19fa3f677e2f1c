package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statusReport is the effective gate state at the time of the call.
type statusReport struct {
	LastSubmitTime    int64 `json:"lastSubmitTime"`
	HourlyWindowStart int64 `json:"hourlyWindowStart"`
	HourlyCount       int   `json:"hourlyCount"`
	QuotaRemaining    int   `json:"quotaRemaining"`
	CooldownSeconds   int   `json:"cooldownSeconds"`
	CanSubmit         bool  `json:"canSubmit"`
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cooldown and hourly quota state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, kv, err := openGate(ctx, v, newLogger(cmd, v))
			if err != nil {
				return err
			}
			defer kv.Close() // nolint:errcheck // best-effort cleanup

			now := time.Now()
			st, err := g.State(ctx, now)
			if err != nil {
				return err
			}
			cooldown, err := g.RemainingCooldownSeconds(ctx, now)
			if err != nil {
				return err
			}
			can, err := g.CanSubmit(ctx, now)
			if err != nil {
				return err
			}

			report := statusReport{
				LastSubmitTime:    st.LastSubmitTime,
				HourlyWindowStart: st.HourlyWindowStart,
				HourlyCount:       st.HourlyCount,
				QuotaRemaining:    max(g.Policy().HourlyQuota-st.HourlyCount, 0),
				CooldownSeconds:   cooldown,
				CanSubmit:         can,
			}

			if asJSON {
				payload, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Field", "Value"})
			t.AppendRows([]table.Row{
				{"Last submission", formatMillis(report.LastSubmitTime)},
				{"Window start", formatMillis(report.HourlyWindowStart)},
				{"Sent this hour", fmt.Sprintf("%d/%d", report.HourlyCount, g.Policy().HourlyQuota)},
				{"Cooldown", fmt.Sprintf("%ds", report.CooldownSeconds)},
				{"Can submit", yesNo(report.CanSubmit)},
			})
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
