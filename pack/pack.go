package pack

import (
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/vfs"
)

// Context carries everything a loader may need besides the file content.
// Nothing is looked up from global state.
type Context struct {
	// Name is the slash separated path of the file relative to Root.
	Name   string
	Root   vfs.Directory
	Config config.Config
}

func (ctx *Context) Options() []iff.Option {
	return []iff.Option{iff.WithEncoding(config.GetEncoding())}
}

// BaseName returns the file name without directory and extension.
func (ctx *Context) BaseName() string {
	base := path.Base(ctx.Name)
	return strings.TrimSuffix(base, path.Ext(base))
}

type FileLoader func(ctx *Context, data []byte) (interface{}, error)

// HttpActioner is implemented by decoded assets offering downloads or
// conversions in the browser.
type HttpActioner interface {
	HttpAction(ctx *Context, w http.ResponseWriter, r *http.Request, action string)
}

var (
	gHandlers    = make(map[string]FileLoader)
	gTagHandlers = make(map[iff.Tag]FileLoader)
)

// SetHandler registers a loader for a file extension such as ".skt".
func SetHandler(ext string, ldr FileLoader) {
	gHandlers[strings.ToUpper(ext)] = ldr
}

// SetTagHandler registers a loader for documents whose root form has tag,
// used when the extension is unknown.
func SetTagHandler(tag string, ldr FileLoader) {
	gTagHandlers[iff.NewTag(tag)] = ldr
}

func Extensions() []string {
	list := make([]string, 0, len(gHandlers))
	for ext := range gHandlers {
		list = append(list, strings.ToLower(ext))
	}
	sort.Strings(list)
	return list
}

func CallHandler(ctx *Context, data []byte) (interface{}, error) {
	ext := strings.ToUpper(path.Ext(ctx.Name))
	if h, found := gHandlers[ext]; found {
		return h(ctx, data)
	}
	if tag, err := iff.NewReader(data).PeekTag(); err == nil {
		if h, found := gTagHandlers[tag]; found {
			return h(ctx, data)
		}
		if tree, err := loadTree(ctx, data); err == nil {
			return tree, nil
		}
	}
	return nil, errors.Errorf("Cannot find handler for %q", ctx.Name)
}

func GetInstanceHandler(root vfs.Directory, cfg config.Config, name string) (interface{}, *Context, error) {
	ctx := &Context{Name: vfs.CleanPath(name), Root: root, Config: cfg}
	data, err := vfs.ReadFile(root, ctx.Name)
	if err != nil {
		return nil, ctx, err
	}
	inst, err := CallHandler(ctx, data)
	if err != nil {
		return nil, ctx, errors.Wrapf(err, "Handler error on %q", ctx.Name)
	}
	return inst, ctx, nil
}

// Tree is the schema-less view used for any container file.
type Tree struct {
	Name string    `json:"name"`
	Root *iff.Node `json:"root"`
}

func loadTree(ctx *Context, data []byte) (interface{}, error) {
	root, err := iff.ParseTree(data)
	if err != nil {
		return nil, err
	}
	return &Tree{Name: ctx.Name, Root: root}, nil
}

func init() {
	SetHandler(".iff", loadTree)
}
