// Command oxyview opens a window and renders a scene described by an asset manifest and an
// optional YAML scene file.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/schollz/progressbar/v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "oxyview: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	manifest := flag.String("manifest", "", "asset manifest, overrides assets.manifest")
	scenePath := flag.String("scene", "", "YAML scene file, overrides assets.scene")
	dumpConfig := flag.Bool("dump-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *manifest != "" {
		cfg.Assets.Manifest = *manifest
	}
	if *scenePath != "" {
		cfg.Assets.Scene = *scenePath
	}
	if *dumpConfig {
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	loader, err := asset.NewDiskLoader(cfg.Assets.Manifest,
		asset.WithLogger(logger),
		asset.WithWorkers(cfg.Assets.Workers),
	)
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := preload(loader); err != nil {
		// Broken assets are skipped at draw time; keep going with what decoded.
		logger.Warn("[Viewer] some assets failed to preload", "error", err)
	}
	if cfg.Assets.Watch {
		if err := loader.Watch(); err != nil {
			logger.Warn("[Viewer] hot reload disabled", "error", err)
		}
	}

	var sc scene.Scene
	if cfg.Assets.Scene != "" {
		if sc, err = scene.LoadScene(cfg.Assets.Scene); err != nil {
			return err
		}
	} else {
		sc = demoScene(loader.Manifest())
	}

	v, err := newViewer(cfg, loader, sc, logger)
	if err != nil {
		return err
	}
	defer v.close()
	return v.run()
}

// preload decodes every manifest asset up front, drawing a progress bar on stderr.
func preload(loader asset.DiskLoader) error {
	var bar *progressbar.ProgressBar
	err := loader.Preload(func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "loading assets")
		}
		_ = bar.Set(done)
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return err
}
