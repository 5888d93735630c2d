package web

import (
	"bytes"
	"net/http"
	"path"
	"sort"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/status"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/webutils"
)

type recursiveLister interface {
	ListRecursive() ([]string, error)
}

type packListing struct {
	Files      []string `json:"files"`
	Extensions []string `json:"extensions"`
}

func (s *Server) HandlerAjaxPack(w http.ResponseWriter, r *http.Request) {
	var files []string
	var err error
	if l, ok := s.Root.(recursiveLister); ok {
		files, err = l.ListRecursive()
	} else {
		files, err = s.Root.List()
		sort.Strings(files)
	}
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, &packListing{Files: files, Extensions: pack.Extensions()})
}

func (s *Server) HandlerAjaxPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, _, err := pack.GetInstanceHandler(s.Root, s.Config, file)
	if err != nil {
		log().Warn("Error loading asset", zap.String("file", file), zap.Error(err))
		writeAssetError(w, err)
		return
	}
	webutils.WriteJson(w, data)
}

// HandlerAjaxTreeFile shows any container file as a raw node tree, whatever
// adapter is registered for it.
func (s *Server) HandlerAjaxTreeFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := vfs.ReadFile(s.Root, file)
	if err != nil {
		writeAssetError(w, err)
		return
	}
	root, err := iff.ParseTree(data)
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to parse %q", file))
		return
	}
	webutils.WriteJson(w, &pack.Tree{Name: vfs.CleanPath(file), Root: root})
}

func (s *Server) HandlerActionPackFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	file, action := vars["file"], vars["action"]
	data, ctx, err := pack.GetInstanceHandler(s.Root, s.Config, file)
	if err != nil {
		writeAssetError(w, err)
		return
	}
	actioner, ok := data.(pack.HttpActioner)
	if !ok {
		webutils.WriteError(w, errors.Errorf("%q has no actions", file))
		return
	}
	actioner.HttpAction(ctx, w, r, action)
}

func (s *Server) HandlerDumpPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := vfs.ReadFile(s.Root, file)
	if err != nil {
		writeAssetError(w, err)
		return
	}
	webutils.WriteFile(w, bytes.NewReader(data), path.Base(vfs.CleanPath(file)))
}

func (s *Server) HandlerUploadPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if err := vfs.WriteFile(s.Root, file, data); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to store %q", file))
		return
	}
	status.Info("Uploaded %q (%d bytes)", file, len(data))
	webutils.WriteJson(w, map[string]interface{}{"name": vfs.CleanPath(file), "size": len(data)})
}

func writeAssetError(w http.ResponseWriter, err error) {
	var nf *iff.ResourceNotFoundError
	if errors.As(err, &nf) {
		webutils.WriteErrorStatus(w, http.StatusNotFound, err)
		return
	}
	webutils.WriteError(w, err)
}
