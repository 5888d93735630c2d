package web

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/status"
	"github.com/swgtools/swg_asset_browser/vfs"
)

var (
	logger     = zap.NewNop()
	loggerLock sync.RWMutex
)

func SetLogger(l *zap.Logger) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger = l
}

func log() *zap.Logger {
	loggerLock.RLock()
	defer loggerLock.RUnlock()
	return logger
}

// Server serves the asset tree below Root.
type Server struct {
	Root   vfs.Directory
	Config config.Config
}

// Router builds the routes. Asset names keep their slashes, so every file
// variable is the tail of the path.
func (s *Server) Router(webPath string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/json/pack", s.HandlerAjaxPack)
	r.HandleFunc("/json/pack/{file:.+}", s.HandlerAjaxPackFile)
	r.HandleFunc("/json/tree/{file:.+}", s.HandlerAjaxTreeFile)
	r.HandleFunc("/action/{action}/{file:.+}", s.HandlerActionPackFile)
	r.HandleFunc("/dump/pack/{file:.+}", s.HandlerDumpPackFile)
	r.HandleFunc("/upload/pack/{file:.+}", s.HandlerUploadPackFile).Methods(http.MethodPost)
	r.HandleFunc("/ws", status.Handler)

	if webPath != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(filepath.Join(webPath, "data"))))
	}
	return r
}

func StartServer(addr string, root vfs.Directory, cfg config.Config, webPath string) error {
	s := &Server{Root: root, Config: cfg}

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router(webPath))
	h = handlers.LoggingHandler(os.Stdout, h)

	log().Info("Starting server", zap.String("addr", addr), zap.String("root", cfg.AssetRoot))

	return http.ListenAndServe(addr, h)
}
