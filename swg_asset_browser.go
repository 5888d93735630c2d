package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/status"
	"github.com/swgtools/swg_asset_browser/utils"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/web"
	"github.com/swgtools/swg_asset_browser/webutils"

	_ "github.com/swgtools/swg_asset_browser/formats/ans"
	_ "github.com/swgtools/swg_asset_browser/formats/extent"
	_ "github.com/swgtools/swg_asset_browser/formats/lmg"
	_ "github.com/swgtools/swg_asset_browser/formats/pal"
	_ "github.com/swgtools/swg_asset_browser/formats/sat"
	_ "github.com/swgtools/swg_asset_browser/formats/skt"
)

func main() {
	var configPath, webPath string
	var flags config.Flags
	flag.StringVar(&configPath, "config", config.DefaultFileName, "Path to config file")
	flag.StringVar(&flags.AssetRoot, "dir", "", "Path to extracted asset tree")
	flag.StringVar(&flags.Listen, "i", "", "Address of server")
	flag.StringVar(&flags.Encoding, "encoding", "", "String encoding of asset files, e.g. UTF-8 or \"Windows 1252\"")
	flag.BoolVar(&flags.Verbose, "v", false, "Verbose logging")
	flag.StringVar(&webPath, "web", "web", "Path to folder with web/data")
	flag.Parse()

	cfg, err := config.Load(configPath, true)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Resolve(flags); err != nil {
		log.Fatal(err)
	}

	logger, err := utils.NewLogger(cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	formats.SetLogger(logger.Named("formats"))
	skeleton.SetLogger(logger.Named("skeleton"))
	status.SetLogger(logger.Named("status"))
	webutils.SetLogger(logger.Named("web"))
	web.SetLogger(logger.Named("web"))

	root := vfs.NewDirectoryDriver(cfg.AssetRoot)
	if err := web.StartServer(cfg.Listen, root, cfg, webPath); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
