// Package cli contains the depthcloud command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	flagConfig           = "config"
	flagDebug            = "debug"
	flagModel            = "model"
	flagModelInputWidth  = "model-input-width"
	flagModelInputHeight = "model-input-height"
	flagStride           = "stride"
	flagFx               = "fx"
	flagFy               = "fy"
	flagPpx              = "ppx"
	flagPpy              = "ppy"
	flagIntrinsics       = "intrinsics"
	flagOutput           = "output"
	flagPreview          = "preview"
	flagDepthFile        = "depth-file"
	flagDepthUnits       = "depth-units"
	flagMin              = "min"
	flagMax              = "max"
)

func conversionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagModel,
			Usage: "depth model to use",
		},
		&cli.IntFlag{
			Name:  flagModelInputWidth,
			Usage: "width images are resized to before inference",
		},
		&cli.IntFlag{
			Name:  flagModelInputHeight,
			Usage: "height images are resized to before inference",
		},
		&cli.StringFlag{
			Name:  flagDepthFile,
			Usage: "use a precomputed depth map from `FILE` (16-bit png, .dm or .dm.gz) instead of a model",
		},
		&cli.Float64Flag{
			Name:  flagDepthUnits,
			Usage: "multiplier applied to the values of a 16-bit png depth file",
		},
	}
}

// NewApp returns a new app with the depthcloud commands, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "depthcloud",
		Usage:           "turn a single image into a colored 3D point cloud",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (json or yaml)",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "estimate depth for an image and write the point cloud",
				ArgsUsage: "<image>",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  flagStride,
						Usage: "sample every Nth pixel in both directions",
					},
					&cli.Float64Flag{
						Name:  flagFx,
						Usage: "horizontal focal length in pixels",
					},
					&cli.Float64Flag{
						Name:  flagFy,
						Usage: "vertical focal length in pixels",
					},
					&cli.Float64Flag{
						Name:  flagPpx,
						Usage: "principal point column (defaults to the image centre)",
					},
					&cli.Float64Flag{
						Name:  flagPpy,
						Usage: "principal point row (defaults to the image centre)",
					},
					&cli.StringFlag{
						Name:  flagIntrinsics,
						Usage: "load camera intrinsics from a json `FILE`, replacing fx, fy, ppx and ppy",
					},
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Usage:   "write the point cloud to `FILE` (.ply, .pcd or .las)",
					},
					&cli.StringFlag{
						Name:  flagPreview,
						Usage: "also render a png preview of the cloud to `FILE`",
					},
				}, conversionFlags()...),
				Action: ConvertAction,
			},
			{
				Name:      "depth",
				Usage:     "write a colorized picture of the estimated depth",
				ArgsUsage: "<image> <out.png>",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{
						Name:  flagMin,
						Usage: "clamp depths below this value",
						Value: 0,
					},
					&cli.Float64Flag{
						Name:  flagMax,
						Usage: "clamp depths above this value",
						Value: 1e9,
					},
				}, conversionFlags()...),
				Action: DepthAction,
			},
			{
				Name:      "inspect",
				Usage:     "print the point count and bounds of a point cloud file",
				ArgsUsage: "<cloud.ply|cloud.pcd|cloud.las>",
				Action:    InspectAction,
			},
			{
				Name:   "models",
				Usage:  "list the available depth models",
				Action: ModelsAction,
			},
		},
	}
}
