package devices

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/swordlegend/dava.engine/internal/audio/device"
)

// Command creates the command listing playback devices.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:         "devices",
		Short:       "List audio playback devices",
		Annotations: map[string]string{"skip-settings": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := device.EnumeratePlayback()
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), infos)
		},
	}
}

func printDevices(w io.Writer, infos []device.Info) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No playback devices found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tDEFAULT\tNAME\tID")
	for _, info := range infos {
		def := ""
		if info.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Index, def, info.Name, info.ID)
	}
	return tw.Flush()
}
