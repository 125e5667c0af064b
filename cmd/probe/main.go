// Command probe checks a profile against a saved screenshot of the game window: it prints
// where each sample point lands, the colour read there and the weapon it matches.
package main

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/scheerer/hunter-screen-colors/internal/classifier"
	"github.com/scheerer/hunter-screen-colors/internal/config"
	"github.com/scheerer/hunter-screen-colors/internal/layout"
	"github.com/scheerer/hunter-screen-colors/internal/palette"
	"github.com/scheerer/hunter-screen-colors/internal/screen"
	"github.com/scheerer/hunter-screen-colors/internal/util"
)

type options struct {
	profilePath string
	metric      string
	algorithm   string
	radius      int
}

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "probe SCREENSHOT.png",
		Short:         "Sample a saved window screenshot the way the sync loop would",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			return probe(cmd.OutOrStdout(), img, opts)
		},
	}
	cmd.Flags().StringVar(&opts.profilePath, "profile", os.Getenv("PROFILE_PATH"), "YAML profile, built-in default when empty")
	cmd.Flags().StringVar(&opts.metric, "metric", "RGB", "colour metric: RGB, LAB or CIEDE2000")
	cmd.Flags().StringVar(&opts.algorithm, "algo", "AVERAGE", "patch reduction: AVERAGE, SQUARED_AVERAGE, MEDIAN or MODE")
	cmd.Flags().IntVar(&opts.radius, "radius", 2, "patch half-size in pixels")
	return cmd
}

func readImage(path string) (image.Image, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

func probe(w io.Writer, img image.Image, opts options) error {
	profile, err := config.LoadProfile(opts.profilePath)
	if err != nil {
		return err
	}
	metric, err := palette.ParseMetric(opts.metric)
	if err != nil {
		return err
	}
	table, err := profile.Table(metric)
	if err != nil {
		return err
	}
	sampler, err := screen.NewSampler(opts.algorithm, opts.radius)
	if err != nil {
		return err
	}
	c, err := classifier.New(table, classifier.DefaultConfirmCount)
	if err != nil {
		return err
	}

	placement, err := layout.Locate(img.Bounds(), profile.Layout)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "window  %v\ncontent %v\nregion  %v\n", placement.Window, placement.Content, placement.Region)

	colors, err := sampler.SamplePoints(img, placement.Points)
	if err != nil {
		return err
	}
	for i, p := range placement.Points {
		fmt.Fprintf(w, "point %d %v: %s\n", i, p, describe(table, colors[i]))
	}

	mean := screen.Mean(colors)
	fmt.Fprintf(w, "sample: %s\n", describe(table, mean))
	fmt.Fprintf(w, "weapon: %s\n", c.Classify(mean))
	return nil
}

func describe(table *palette.Table, c color.RGBA) string {
	_, saturation, _ := util.RgbToHsb(c.R, c.G, c.B)
	nearest, distance := table.Nearest(c)
	s := fmt.Sprintf("%s nearest %s (%.1f, tolerance %.1f)", palette.Hex(c), nearest.Identity, distance, nearest.Tolerance)
	if util.IsColorGreyish(saturation) {
		s += " greyish"
	}
	return s
}
