package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/framecodec/internal/media"
)

// ThumbnailOptions holds thumbnail command options.
type ThumbnailOptions struct {
	In      string
	Out     string
	Width   int
	Height  int
	Quality int
}

// NewThumbnailCommand creates the thumbnail command.
func NewThumbnailCommand(root *RootOptions) *cobra.Command {
	opts := &ThumbnailOptions{}

	cmd := &cobra.Command{
		Use:   "thumbnail",
		Short: "Fit an image into a box, pad it with black and write a JPEG",
		Example: `  framecodec thumbnail --in photo.png --out thumb.jpg --width 320 --height 240
  framecodec thumbnail --in photo.jpg --out thumb.jpg --width 64 --height 64 --quality 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumbnail(cmd, root.logger, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.In, "in", "i", "", "Input image (png, jpeg, bmp, gif, tiff, webp)")
	flags.StringVarP(&opts.Out, "out", "o", "", "Output JPEG path")
	flags.IntVar(&opts.Width, "width", 0, "Output width in pixels")
	flags.IntVar(&opts.Height, "height", 0, "Output height in pixels")
	flags.IntVarP(&opts.Quality, "quality", "q", 0, "JPEG quantizer, 2 (best) to 31; 0 keeps the encoder default")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")

	return cmd
}

func runThumbnail(cmd *cobra.Command, logger *slog.Logger, opts *ThumbnailOptions) error {
	if opts.Quality != 0 && (opts.Quality < 2 || opts.Quality > 31) {
		return fmt.Errorf("--quality must be between 2 and 31, got %d", opts.Quality)
	}

	data, err := os.ReadFile(opts.In)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	p := media.NewFFmpegProcessor(opts.Quality, logger)
	jpg, err := p.Thumbnail(cmd.Context(), data, opts.Width, opts.Height)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.Out, jpg, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %d bytes)\n", opts.Out, opts.Width, opts.Height, len(jpg))
	return nil
}
