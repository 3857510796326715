package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maauso/framecodec/internal/codec"
)

// CodecsOptions holds codecs command options.
type CodecsOptions struct {
	OutputFormat string
}

type codecRow struct {
	Name      string   `json:"name"`
	MediaType string   `json:"media_type"`
	Encoder   bool     `json:"encoder"`
	Decoder   bool     `json:"decoder"`
	Profiles  []string `json:"profiles,omitempty"`
}

// NewCodecsCommand creates the codecs command.
func NewCodecsCommand() *cobra.Command {
	opts := &CodecsOptions{}

	cmd := &cobra.Command{
		Use:   "codecs",
		Short: "List known codecs and whether FFmpeg provides them",
		Example: `  framecodec codecs
  framecodec codecs --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCodecs(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runCodecs(out io.Writer, opts *CodecsOptions) error {
	var rows []codecRow
	for _, d := range codec.Descriptors() {
		r := codecRow{
			Name:      d.Name,
			MediaType: d.MediaType.String(),
			Encoder:   codec.HasEncoder(d.ID),
			Decoder:   codec.HasDecoder(d.ID),
		}
		for _, p := range d.Profiles {
			r.Profiles = append(r.Profiles, p.Name)
		}
		rows = append(rows, r)
	}

	switch opts.OutputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tDEC\tENC\tPROFILES")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.Name, r.MediaType, yesNo(r.Decoder), yesNo(r.Encoder), strings.Join(r.Profiles, ", "))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", opts.OutputFormat)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
