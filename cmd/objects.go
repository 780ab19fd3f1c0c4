package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitrozx/rscap/internal/sink"
)

// CreateObjectsCmd creates the objects command.
func CreateObjectsCmd() *cobra.Command {
	var bucket string
	var prefix string

	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List uploaded recordings",
		Long:  `Lists objects in the destination bucket, optionally filtered by key prefix.`,
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if bucket == "" {
				fmt.Fprintln(os.Stderr, "--bucket is required")
				os.Exit(1)
			}

			ctx := context.Background()
			store, err := sink.NewGCS(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create object storage client: %v\n", err)
				os.Exit(1)
			}
			defer store.Close()

			objects, err := store.List(ctx, bucket, prefix)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to list objects: %v\n", err)
				os.Exit(1)
			}

			if len(objects) == 0 {
				fmt.Println("No objects found")
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tUPDATED")
			for _, o := range objects {
				updated := ""
				if !o.Updated.IsZero() {
					updated = o.Updated.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, updated)
			}
			w.Flush()
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket to list")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix filter")

	return cmd
}
