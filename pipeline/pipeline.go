// Package pipeline turns an encoded image into a colored point cloud: decode, estimate depth,
// project, and export.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/depth"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// IntrinsicsFunc returns the camera parameters for an image of the given size.
type IntrinsicsFunc func(width, height int) *transform.PinholeCameraIntrinsics

// Pipeline converts images into point clouds. The zero Intrinsics means unit focal lengths with
// the principal point at the image centre.
type Pipeline struct {
	Estimator  depth.Estimator
	Stride     int
	Intrinsics IntrinsicsFunc
	Logger     logging.Logger

	cache *depth.ModelCache
}

// Result holds everything a single run produced.
type Result struct {
	RunID      uuid.UUID
	Image      *rimage.Image
	Depth      *rimage.DepthMap
	Intrinsics *transform.PinholeCameraIntrinsics
	Cloud      pointcloud.PointCloud
}

// NewFromConfig builds a pipeline from a validated config, loading its intrinsics_file if one is
// set. Model backed pipelines load their model lazily on the first run; call Close to release it.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.Global()
	}
	if err := cfg.LoadIntrinsicsFile(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		Stride:     cfg.Stride,
		Intrinsics: cfg.Intrinsics,
		Logger:     logger,
	}
	if cfg.DepthFile != "" {
		p.Estimator = &depth.FileEstimator{Path: cfg.DepthFile, Units: cfg.DepthUnits, Logger: logger.Sublogger("depth")}
		return p, nil
	}

	cache, input, err := depth.NewModelCacheFor(cfg.ModelConfig(), logger.Sublogger("model"))
	if err != nil {
		return nil, err
	}
	est, err := depth.NewModelEstimator(cache, cfg.InputSpec(input), logger.Sublogger("depth"))
	if err != nil {
		return nil, err
	}
	p.Estimator = est
	p.cache = cache
	return p, nil
}

// Run decodes an image from r and converts it.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline::Run")
	defer span.End()

	img, err := decode(ctx, r)
	if err != nil {
		return nil, err
	}
	return p.RunImage(ctx, img)
}

func decode(ctx context.Context, r io.Reader) (*rimage.Image, error) {
	_, span := trace.StartSpan(ctx, "pipeline::Decode")
	defer span.End()
	return rimage.DecodeImage(r)
}

// RunImage estimates depth for img and projects it.
func (p *Pipeline) RunImage(ctx context.Context, img *rimage.Image) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline::RunImage")
	defer span.End()

	if p.Estimator == nil {
		return nil, errors.New("pipeline has no depth estimator")
	}
	if img == nil {
		return nil, errors.Wrap(rimage.ErrInvalidParameter, "no image to convert")
	}
	res := &Result{RunID: uuid.New(), Image: img}
	logger := p.logger()
	start := time.Now()
	logger.CDebugw(ctx, "starting conversion", "run_id", res.RunID.String(),
		"width", img.Width(), "height", img.Height(), "stride", p.Stride)

	dm, err := p.estimate(ctx, img)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: depth estimation failed", res.RunID)
	}
	res.Depth = dm
	estimated := time.Now()

	if p.Intrinsics != nil {
		res.Intrinsics = p.Intrinsics(img.Width(), img.Height())
	} else {
		res.Intrinsics = transform.NewUnitIntrinsics(img.Width(), img.Height())
	}
	if k := res.Intrinsics.GetCameraMatrix(); k != nil {
		logger.CDebugw(ctx, "projecting with camera matrix", "run_id", res.RunID.String(),
			"camera_matrix", fmt.Sprintf("%v", mat.Formatted(k, mat.Squeeze())))
	}
	cloud, err := p.project(ctx, dm, img, res.Intrinsics)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: projection failed", res.RunID)
	}
	res.Cloud = cloud

	lo, hi := dm.MinMax()
	logger.Infow("converted image to point cloud",
		"run_id", res.RunID.String(),
		"points", cloud.Size(),
		"depth_min", float64(lo),
		"depth_max", float64(hi),
		"estimate_time", estimated.Sub(start).String(),
		"total_time", time.Since(start).String())
	return res, nil
}

func (p *Pipeline) estimate(ctx context.Context, img *rimage.Image) (*rimage.DepthMap, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline::EstimateDepth")
	defer span.End()

	dm, err := p.Estimator.EstimateDepth(ctx, img)
	if err != nil {
		return nil, err
	}
	if dm.Bounds() != img.Bounds() {
		return nil, rimage.NewShapeMismatchError("estimated depth map does not match image",
			dm.Width(), dm.Height(), img.Width(), img.Height())
	}
	return dm, nil
}

func (p *Pipeline) project(
	ctx context.Context,
	dm *rimage.DepthMap,
	img *rimage.Image,
	params *transform.PinholeCameraIntrinsics,
) (pointcloud.PointCloud, error) {
	_, span := trace.StartSpan(ctx, "pipeline::Project")
	defer span.End()
	return transform.Project(dm, img, p.Stride, params)
}

// Export writes the result's cloud to path; the format follows the extension.
func (p *Pipeline) Export(ctx context.Context, res *Result, path string) error {
	_, span := trace.StartSpan(ctx, "pipeline::Export")
	defer span.End()

	if res == nil || res.Cloud == nil {
		return errors.New("nothing to export")
	}
	if err := pointcloud.WriteToFile(res.Cloud, path); err != nil {
		return err
	}
	p.logger().Infow("wrote point cloud", "run_id", res.RunID.String(), "path", path, "points", res.Cloud.Size())
	return nil
}

// Close releases the depth model, if the pipeline loaded one.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close(ctx)
}

func (p *Pipeline) logger() logging.Logger {
	if p.Logger == nil {
		return logging.Global()
	}
	return p.Logger
}
