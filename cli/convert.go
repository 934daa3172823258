package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/depth"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pipeline"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/preview"
	"go.viam.com/depthcloud/rimage"
)

// loadConfig reads the --config file, if any, and applies command line overrides on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, errors.Wrapf(err, "cannot read config %q", path)
		}
	}

	if c.IsSet(flagModel) {
		cfg.Model = c.String(flagModel)
	}
	if c.IsSet(flagModelInputWidth) {
		cfg.ModelInputWidth = c.Int(flagModelInputWidth)
	}
	if c.IsSet(flagModelInputHeight) {
		cfg.ModelInputHeight = c.Int(flagModelInputHeight)
	}
	if c.IsSet(flagStride) {
		cfg.Stride = c.Int(flagStride)
	}
	if c.IsSet(flagFx) {
		cfg.Fx = c.Float64(flagFx)
	}
	if c.IsSet(flagFy) {
		cfg.Fy = c.Float64(flagFy)
	}
	if c.IsSet(flagPpx) {
		ppx := c.Float64(flagPpx)
		cfg.Ppx = &ppx
	}
	if c.IsSet(flagPpy) {
		ppy := c.Float64(flagPpy)
		cfg.Ppy = &ppy
	}
	if c.IsSet(flagIntrinsics) {
		cfg.IntrinsicsFile = c.String(flagIntrinsics)
	}
	if c.IsSet(flagOutput) {
		cfg.Output = c.String(flagOutput)
	}
	if c.IsSet(flagPreview) {
		cfg.Preview = c.String(flagPreview)
	}
	if c.IsSet(flagDepthFile) {
		cfg.DepthFile = c.String(flagDepthFile)
	}
	if c.IsSet(flagDepthUnits) {
		cfg.DepthUnits = c.Float64(flagDepthUnits)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger logs to the app's error writer at the configured level, or debug with --debug.
func newLogger(c *cli.Context, cfg *config.Config) logging.Logger {
	logger := logging.NewBlankLogger("depthcloud")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(cfg.LogLevel)
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

// withPipeline builds the configured pipeline, runs fn with it and closes it.
func withPipeline(
	c *cli.Context,
	fn func(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger logging.Logger) error,
) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Bool(flagDebug) {
		ctx = logging.EnableDebugMode(ctx, "")
	}
	defer func() {
		err = multierr.Combine(err, p.Close(ctx))
	}()
	return fn(ctx, cfg, p, logger)
}

func runImage(ctx context.Context, p *pipeline.Pipeline, path string) (*pipeline.Result, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	return p.Run(ctx, f)
}

// ConvertAction is the corresponding Action for 'convert'.
func ConvertAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("convert expects exactly one image argument")
	}
	imagePath := c.Args().First()
	return withPipeline(c, func(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger logging.Logger) error {
		res, err := runImage(ctx, p, imagePath)
		if err != nil {
			return err
		}
		if err := p.Export(ctx, res, cfg.Output); err != nil {
			return err
		}
		if cfg.Preview != "" {
			opts := preview.DefaultOptions()
			opts.Label = fmt.Sprintf("%s: %d points", imagePath, res.Cloud.Size())
			if err := preview.WritePNG(res.Cloud, cfg.Preview, opts); err != nil {
				return errors.Wrap(err, "cannot write preview")
			}
			logger.Infow("wrote preview", "path", cfg.Preview)
		}
		printf(c.App.Writer, "Wrote %d points to %s", res.Cloud.Size(), cfg.Output)
		return nil
	})
}

// DepthAction is the corresponding Action for 'depth'.
func DepthAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("depth expects an image argument and an output png argument")
	}
	imagePath, outPath := c.Args().Get(0), c.Args().Get(1)
	return withPipeline(c, func(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger logging.Logger) error {
		img, err := rimage.ReadImageFromFile(imagePath)
		if err != nil {
			return err
		}
		dm, err := p.Estimator.EstimateDepth(ctx, img)
		if err != nil {
			return err
		}
		pretty := dm.ToPrettyPicture(rimage.Depth(c.Float64(flagMin)), rimage.Depth(c.Float64(flagMax)))
		if err := rimage.WriteImageToFile(outPath, pretty); err != nil {
			return err
		}
		lo, hi := dm.MinMax()
		printf(c.App.Writer, "Wrote depth picture to %s (depth range %v to %v)", outPath, float64(lo), float64(hi))
		return nil
	})
}

// InspectAction is the corresponding Action for 'inspect'.
func InspectAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("inspect expects exactly one point cloud argument")
	}
	cloud, err := pointcloud.NewFromFile(c.Args().First())
	if err != nil {
		return err
	}
	meta := cloud.MetaData()
	printf(c.App.Writer, "points: %d", cloud.Size())
	printf(c.App.Writer, "color: %t", meta.HasColor)
	if !meta.Empty() {
		printf(c.App.Writer, "x: [%g, %g]", meta.MinX, meta.MaxX)
		printf(c.App.Writer, "y: [%g, %g]", meta.MinY, meta.MaxY)
		printf(c.App.Writer, "z: [%g, %g]", meta.MinZ, meta.MaxZ)
		center := meta.Center()
		printf(c.App.Writer, "center: (%g, %g, %g)", center.X, center.Y, center.Z)
	}
	return nil
}

// ModelsAction is the corresponding Action for 'models'.
func ModelsAction(c *cli.Context) error {
	for _, name := range depth.RegisteredModels() {
		reg, _ := depth.LookupModel(name)
		printf(c.App.Writer, "%s (input %dx%d %s)", name, reg.Input.Width, reg.Input.Height, reg.Input.Layout)
	}
	return nil
}
