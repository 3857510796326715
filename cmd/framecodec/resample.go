package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/framecodec/internal/audio"
)

// ResampleOptions holds resample command options.
type ResampleOptions struct {
	In       string
	Out      string
	From     int
	To       int
	Channels int
}

// NewResampleCommand creates the resample command.
func NewResampleCommand(root *RootOptions) *cobra.Command {
	opts := &ResampleOptions{}

	cmd := &cobra.Command{
		Use:   "resample",
		Short: "Convert a 16-bit PCM WAV file to another sample rate or channel count",
		Example: `  framecodec resample --in speech.wav --out speech16k.wav --to 16000 --channels 1
  framecodec resample --in raw.wav --out out.wav --from 44100 --to 48000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResample(cmd, root.logger, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.In, "in", "i", "", "Input WAV path")
	flags.StringVarP(&opts.Out, "out", "o", "", "Output WAV path")
	flags.IntVar(&opts.From, "from", 0, "Input sample rate; 0 uses the WAV header")
	flags.IntVar(&opts.To, "to", 16000, "Output sample rate")
	flags.IntVar(&opts.Channels, "channels", 0, "Output channel count (1, 2 or 6); 0 keeps the input's")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runResample(cmd *cobra.Command, logger *slog.Logger, opts *ResampleOptions) error {
	f, err := os.Open(opts.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	pcm, info, err := audio.ReadWAV(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.In, err)
	}

	ro := audio.DefaultResampleOpts()
	ro.FromRate = info.SampleRate
	if opts.From > 0 {
		ro.FromRate = opts.From
	}
	ro.FromChannels = info.Channels
	ro.ToRate = opts.To
	ro.ToChannels = info.Channels
	if opts.Channels > 0 {
		ro.ToChannels = opts.Channels
	}

	out, err := audio.NewFFmpegResampler(logger).Resample(cmd.Context(), pcm, ro)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := audio.WriteWAV(&buf, out, audio.WAVInfo{SampleRate: ro.ToRate, Channels: ro.ToChannels}); err != nil {
		return err
	}
	if err := os.WriteFile(opts.Out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d Hz, %d ch, %d bytes of audio)\n",
		opts.Out, ro.ToRate, ro.ToChannels, len(out))
	return nil
}
