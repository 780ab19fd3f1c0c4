package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pitrozx/rscap/internal/audio"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Long:  `Enumerates ALSA audio capture devices usable as the audio-device of a recording.`,
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			devices, err := audio.NewDetector().ListDevices()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to list audio devices: %v\n", err)
				os.Exit(1)
			}

			if len(devices) == 0 {
				fmt.Println("No audio capture devices found")
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCARD\tNAME\tCHANNELS\tRATES")
			for _, d := range devices {
				rates := make([]string, len(d.SampleRates))
				for i, r := range d.SampleRates {
					rates[i] = fmt.Sprintf("%d", r)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					d.ID, d.CardName, d.Name, d.MaxChannels, strings.Join(rates, ","))
			}
			w.Flush()
		},
	}
}
