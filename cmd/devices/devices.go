// Package devices prints the audio endpoints of the simulated platform.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/callctl/internal/app"
	"github.com/tphakala/callctl/internal/bridge"
	"github.com/tphakala/callctl/internal/conf"
)

// Command creates the devices command.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the audio devices of the simulated platform",
		Long:  "Enumerate the configured simulated devices through the bridge and print the getAvailableAudioDevices result.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw bridge result as JSON")
	return cmd
}

func run(ctx context.Context, settings *conf.Settings, out io.Writer, asJSON bool) error {
	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Bridge.GetAvailableAudioDevices(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printTable(out, result)
}

func printTable(out io.Writer, result bridge.DevicesResult) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tBLUETOOTH\tHEADPHONE")
	for _, d := range result.Devices {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\n", d.ID, d.TypeName, d.ProductName, d.IsBluetooth, d.IsHeadphone)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nbluetooth: %t  wired headset: %t  speakerphone: %t  sco: %t  mode: %d\n",
		result.HasBluetooth, result.HasWiredHeadset, result.IsSpeakerphoneOn, result.IsBluetoothScoOn, result.Mode)
	return err
}
