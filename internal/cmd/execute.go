package cmd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/tilepyramid/internal/config"
	"github.com/MeKo-Tech/tilepyramid/internal/datasource"
	"github.com/MeKo-Tech/tilepyramid/internal/executor"
	"github.com/MeKo-Tech/tilepyramid/internal/job"
	"github.com/MeKo-Tech/tilepyramid/internal/mbtiles"
	"github.com/MeKo-Tech/tilepyramid/internal/observer"
	"github.com/MeKo-Tech/tilepyramid/internal/raster"
	"github.com/MeKo-Tech/tilepyramid/internal/task"
	"github.com/MeKo-Tech/tilepyramid/internal/tile"
	"github.com/MeKo-Tech/tilepyramid/internal/types"
)

var (
	zoomFlag        []int
	boundsFlag      []float64
	tileFlag        []int
	overwriteFlag   bool
	modeFlag        string
	concurrencyFlag string
	workersFlag     int
	retriesFlag     int
	chunksizeFlag   int
	osmFlag         bool
	osmEndpointFlag string
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run the tile pyramid job against a zoom range, bounds, or single tile",
	Long: `execute materializes the job's task graph for the requested zoom levels
and drains it through the selected concurrency backend, writing output
tiles to the configured MBTiles sink.`,
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().IntSliceVar(&zoomFlag, "zoom", nil, "zoom level, or \"min,max\" range")
	executeCmd.Flags().Float64SliceVar(&boundsFlag, "bounds", nil, "left,bottom,right,top in lon/lat")
	executeCmd.Flags().IntSliceVar(&tileFlag, "tile", nil, "single tile as zoom,row,column")
	executeCmd.Flags().BoolVar(&overwriteFlag, "overwrite", false, "reprocess tiles even if already written")
	executeCmd.Flags().StringVar(&modeFlag, "mode", string(config.ModeContinue), "readonly, continue, overwrite, or memory")
	executeCmd.Flags().StringVar(&concurrencyFlag, "concurrency", string(executor.ConcurrencyThreads), "sequential, threads, processes, or dataflow")
	executeCmd.Flags().IntVar(&workersFlag, "workers", 4, "worker count for threads/processes backends")
	executeCmd.Flags().IntVar(&retriesFlag, "retries", 0, "job-level retry budget")
	executeCmd.Flags().IntVar(&chunksizeFlag, "chunksize", 0, "dataflow chunk size")
	executeCmd.Flags().BoolVar(&osmFlag, "osm", false, "fetch OSM features for --bounds as a preprocessing input (key \"osm\")")
	executeCmd.Flags().StringVar(&osmEndpointFlag, "osm-endpoint", "", "Overpass API endpoint (default: public overpass-api.de)")
}

func runExecute(c *cobra.Command, args []string) error {
	if len(zoomFlag) == 0 {
		return fmt.Errorf("execute: --zoom is required")
	}
	minZoom, maxZoom := zoomRange(zoomFlag)

	var area *[4]float64
	switch {
	case len(boundsFlag) == 4:
		b := [4]float64{boundsFlag[0], boundsFlag[1], boundsFlag[2], boundsFlag[3]}
		area = &b
	case len(tileFlag) == 3:
		t := tile.NewCoords(uint32(tileFlag[0]), uint32(tileFlag[2]), uint32(tileFlag[1]))
		b := t.Bounds()
		area = &b
		minZoom, maxZoom = t.Z, t.Z
	default:
		return fmt.Errorf("execute: one of --bounds or --tile is required")
	}

	outputPath := viper.GetString("output-dir")
	pyramid := tile.NewPyramid(minZoom, maxZoom)

	mode := config.Mode(modeFlag)
	if overwriteFlag {
		mode = config.ModeOverwrite
	}

	batchSize := mbtiles.DefaultBatchSize
	if len(tileFlag) == 3 {
		batchSize = 1
	}
	store, err := mbtiles.NewStoreWithBatchSize(outputPath, mbtiles.Metadata{
		Name:    "tilepyramid",
		Format:  "png",
		Type:    "baselayer",
		MinZoom: int(minZoom),
		MaxZoom: int(maxZoom),
		Bounds:  *area,
	}, pyramid, 0, batchSize)
	if err != nil {
		return fmt.Errorf("execute: opening output: %w", err)
	}
	defer store.Close()

	cfg := &config.Job{
		ProcessPyramid: pyramid,
		OutputPyramid:  pyramid,
		ZoomLevels:     pyramid.ZoomLevels(),
		Baselevels: &config.Baselevels{
			Zooms:   map[uint32]bool{maxZoom: true},
			Higher:  raster.ResampleLinear,
			Lower:   raster.ResampleLinear,
			Pyramid: pyramid,
		},
		Mode:         mode,
		OutputReader: store,
		Area:         area,
		Process:      demoProcess(store),
	}

	if osmFlag {
		ds := datasource.NewOverpassDataSource(osmEndpointFlag)
		defer ds.Close()

		cfg.PreprocessingTasks = []config.PreprocessingTask{
			ds.PreprocessingTask("osm", datasource.NewPreprocessingTaskKey(), *area, maxZoom),
		}
		cfg.GetInputsForTile = func(tile.Coords) map[string]any {
			return map[string]any{"osm": nil}
		}
	}

	bar := observer.NewProgressBar(true)
	obs := observer.NewObservers(logObserver{}, bar)
	j := job.New(cfg, obs)

	opts := job.Options{
		Retries: retriesFlag,
		Executor: executor.Options{
			Concurrency: executor.Concurrency(concurrencyFlag),
			Workers:     workersFlag,
			Chunksize:   chunksizeFlag,
		},
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runErr := j.Run(ctx, opts)
	fmt.Fprintln(c.ErrOrStderr(), bar.Summary())
	if runErr != nil {
		return runErr
	}
	return nil
}

func zoomRange(vals []int) (uint32, uint32) {
	if len(vals) == 1 {
		return uint32(vals[0]), uint32(vals[0])
	}
	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return uint32(min), uint32(max)
}

// demoProcess is the built-in process function used when the CLI is run
// without an embedding program supplying one: it paints each tile a flat
// colour derived from its coordinate, enough to exercise the full graph
// (preprocessing, dependency resolution, baselevel interpolation, output
// writing) end to end.
func demoProcess(store *mbtiles.Store) config.ProcessFunc {
	return func(_ context.Context, pctx config.ProcessContext) (any, error) {
		size := int(store.Pyramid().TileSize)
		if size == 0 {
			size = 256
		}
		c := color.RGBA{
			R: uint8(pctx.Tile.X * 37 % 256),
			G: uint8(pctx.Tile.Y * 53 % 256),
			B: uint8(pctx.Tile.Z * 97 % 256),
			A: 255,
		}
		// When an "osm" preprocessing input was wired in (--osm), let the
		// count of water features nudge the blue channel, so the fetched
		// data visibly flows through to output instead of being discarded.
		if osm, ok := pctx.Input["osm"].(*types.TileData); ok && osm != nil {
			c.B = uint8((int(c.B) + len(osm.Features.Water)*7) % 256)
		}
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, c)
			}
		}
		r := raster.Raster{Image: img, NoData: store.NoData(), Tile: pctx.Tile}
		if err := store.Write(r); err != nil {
			return nil, err
		}
		return r, nil
	}
}

// logObserver prints status and progress transitions to stderr, the CLI's
// minimal stand-in for the teacher's verbose-flag console logging.
type logObserver struct{}

func (logObserver) Notify(e observer.Event) error {
	switch {
	case e.Status != "":
		logger.Info("job status", "status", string(e.Status))
	case e.Progress != nil:
		logger.Debug("progress", "current", strconv.Itoa(e.Progress.Current), "total", strconv.Itoa(e.Progress.Total))
	case e.TaskResult != nil:
		if e.TaskResult.Err != nil && !task.IsNoData(e.TaskResult.Err) {
			logger.Warn("task failed", "id", e.TaskResult.ID, "error", e.TaskResult.Err.Error())
		}
	}
	return nil
}
