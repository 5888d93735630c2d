package webutils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
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

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	if _, err := io.Copy(w, in); err != nil {
		log().Warn("Error when writing file response", zap.String("name", name), zap.Error(err))
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, err)
	} else {
		WriteResult(w, res)
	}
}

func WriteJsonFile(w http.ResponseWriter, v interface{}, fileName string) {
	if data, err := json.MarshalIndent(v, "", "  "); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		WriteFile(w, bytes.NewReader(data), fileName+".json")
	}
}

func ReadJsonFile(r *http.Request, formFileKey string, v interface{}) error {
	data, err := ReadFormFile(r, formFileKey)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal")
	}

	return nil
}

func WriteResult(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		log().Warn("Error when writing response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, http.StatusBadRequest, err)
}

// WriteErrorStatus reports err as a json object with the given status code.
func WriteErrorStatus(w http.ResponseWriter, status int, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	log().Error("HERR", zap.Int("status", status), zap.Error(err))
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		log().Error("Error marshaling error", zap.Error(merr))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	WriteResult(w, data)
}

// IsPost reports whether r is a POST request.
func IsPost(r *http.Request) bool {
	return strings.ToUpper(r.Method) == "POST"
}

// ReadFormFile returns the content of the uploaded file field formFileKey.
func ReadFormFile(r *http.Request, formFileKey string) ([]byte, error) {
	if !IsPost(r) {
		return nil, errors.Errorf("Invalid http method %q", r.Method)
	}
	f, _, err := r.FormFile(formFileKey)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to get file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	return data, errors.Wrapf(err, "Failed to read")
}
