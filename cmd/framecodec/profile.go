package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/framecodec/internal/codec"
)

// NewProfileCommand creates the profile command.
func NewProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <codec> <name>",
		Short: "Resolve a codec profile name to FFmpeg's numeric value",
		Example: `  framecodec profile h264 High
  framecodec profile aac "HE-AAC"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := codec.ParseCodecID(args[0])
			if err != nil {
				return err
			}
			p := codec.ResolveProfile(id, args[1])
			if p == codec.ProfileUnknown {
				return fmt.Errorf("codec %s has no profile %q", id, args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), int(p))
			return nil
		},
	}
}
