package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/formats/skt"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/utils"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
)

type job struct {
	input, output string
	lod           int
	settings      skt.Settings
	opts          []iff.Option
	logger        *zap.Logger
}

func (j *job) load() (*skeleton.Asset, error) {
	switch strings.ToLower(filepath.Ext(j.input)) {
	case ".skt":
		return skt.Load(j.input, j.opts...)
	case ".yaml", ".yml":
		f, err := os.Open(j.input)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to open %q", j.input)
		}
		defer f.Close()
		return skt.DecodeYAML(f)
	case ".glb", ".gltf":
		f, err := os.Open(j.input)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to open %q", j.input)
		}
		defer f.Close()
		doc, err := gltfutils.Decode(f)
		if err != nil {
			return nil, err
		}
		level, warnings, err := skt.ImportGLTF(doc, j.settings)
		if err != nil {
			return nil, err
		}
		j.warn(warnings)
		name := strings.TrimSuffix(filepath.Base(j.input), filepath.Ext(j.input))
		return &skeleton.Asset{Name: name, Levels: []skeleton.Level{*level}}, nil
	}
	return nil, errors.Errorf("Unknown input type %q", j.input)
}

func (j *job) warn(warnings []error) {
	for _, w := range warnings {
		j.logger.Warn("numeric fallback", zap.Error(w))
	}
}

func (j *job) run() error {
	asset, err := j.load()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(j.output)) {
	case ".skt":
		data, err := skt.Encode(asset, j.opts...)
		if err != nil {
			return err
		}
		buf.Write(data)
	case ".yaml", ".yml":
		if err := skt.EncodeYAML(&buf, asset); err != nil {
			return err
		}
	case ".glb":
		s := &skt.Skeleton{Asset: *asset}
		warnings, err := s.ExportGLB(&buf, j.lod, j.settings)
		if err != nil {
			return err
		}
		j.warn(warnings)
	case ".fbx":
		s := &skt.Skeleton{Asset: *asset}
		f, warnings, err := s.ExportFbxDefault(j.lod, j.settings)
		if err != nil {
			return err
		}
		j.warn(warnings)
		if err := f.Write(&buf); err != nil {
			return errors.Wrapf(err, "Failed to write fbx")
		}
	default:
		return errors.Errorf("Unknown output type %q", j.output)
	}
	if err := iff.WriteFileAtomic(j.output, buf.Bytes()); err != nil {
		return err
	}
	j.logger.Info("converted", zap.String("from", j.input), zap.String("to", j.output),
		zap.Int("levels", len(asset.Levels)))
	return nil
}

func main() {
	var configPath, order, alloc, mirror string
	var verbose bool
	j := &job{}
	flag.StringVar(&configPath, "config", config.DefaultFileName, "Path to config file")
	flag.StringVar(&j.output, "o", "", "Output file (.skt, .yaml, .glb, .fbx)")
	flag.IntVar(&j.lod, "lod", 0, "Level of detail to export")
	flag.StringVar(&order, "order", "", "Rotation composition order override")
	flag.StringVar(&alloc, "alloc", "", "Pre/post rotation allocation on import (preserve, fold)")
	flag.StringVar(&mirror, "mirror", "", "Mirror X axis: true or false (default from config)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if flag.NArg() != 1 || j.output == "" {
		fmt.Fprintln(os.Stderr, "usage: sktconv [flags] -o output input")
		flag.PrintDefaults()
		os.Exit(2)
	}
	j.input = flag.Arg(0)

	cfg, err := config.Load(configPath, true)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Resolve(config.Flags{Verbose: verbose}); err != nil {
		log.Fatal(err)
	}
	if order != "" {
		cfg.Skeleton.Order = order
	}
	if alloc != "" {
		cfg.Skeleton.Allocation = alloc
	}
	switch mirror {
	case "":
	case "true":
		cfg.Skeleton.MirrorX = true
	case "false":
		cfg.Skeleton.MirrorX = false
	default:
		log.Fatalf("Invalid -mirror value %q", mirror)
	}
	if j.settings, err = skt.SettingsFromConfig(cfg.Skeleton); err != nil {
		log.Fatal(err)
	}
	j.opts = []iff.Option{iff.WithEncoding(config.GetEncoding())}

	if j.logger, err = utils.NewLogger(cfg.Verbose); err != nil {
		log.Fatal(err)
	}
	defer j.logger.Sync()
	formats.SetLogger(j.logger)
	skeleton.SetLogger(j.logger)

	if err := j.run(); err != nil {
		j.logger.Fatal("conversion failed", zap.Error(err))
	}
}
