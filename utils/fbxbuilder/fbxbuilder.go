// Package fbxbuilder assembles binary FBX 7.4 scenes for skeleton export.
package fbxbuilder

import (
	"bytes"
	"io"
	"path/filepath"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const (
	fbxVersion = 7400

	creator     = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
	vendor      = "swgtools"
	application = "swg_asset_browser"
	appVersion  = "1.0"

	// Exports are reproducible, so every timestamp is the epoch.
	dateTimeGMT  = "01/01/1970 00:00:00.000"
	creationTime = "1970-01-01 10:00:00:000"

	firstID = 1000000
)

var fileID = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Builder collects objects and connections of one scene. Object counts of the
// Definitions section are derived from the objects on output.
type Builder struct {
	f           *fbx.FBX
	objects     *fbx.Node
	connections *fbx.Node
	lastID      int64
	cache       map[string]interface{}
}

// New starts a Y up, right handed scene in meters that claims to be stored as
// fileName.
func New(fileName string) *Builder {
	b := &Builder{
		f:           fbx.NewFBX(fbxVersion),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
		lastID:      firstID,
		cache:       make(map[string]interface{}),
	}
	b.Root().AddNodes(
		headerExtension(fileName),
		bfbx73.FileId(fileID),
		bfbx73.CreationTime(creationTime),
		bfbx73.Creator(creator),
		globalSettings(),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(b.NewID(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		definitions(),
		b.objects,
		b.connections,
		bfbx73.Takes().AddNodes(bfbx73.Current("")),
	)
	return b
}

func applicationInfo(prefix string) []*fbx.Node {
	return []*fbx.Node{
		bfbx73.P(prefix, "Compound", "", ""),
		bfbx73.P(prefix+"|ApplicationVendor", "KString", "", "", vendor),
		bfbx73.P(prefix+"|ApplicationName", "KString", "", "", application),
		bfbx73.P(prefix+"|ApplicationVersion", "KString", "", "", appVersion),
		bfbx73.P(prefix+"|DateTime_GMT", "DateTime", "", "", dateTimeGMT),
	}
}

func headerExtension(fileName string) *fbx.Node {
	props := bfbx73.Properties70().AddNodes(
		bfbx73.P("DocumentUrl", "KString", "Url", "", fileName),
		bfbx73.P("SrcDocumentUrl", "KString", "Url", "", fileName),
	)
	props.AddNodes(applicationInfo("Original")...)
	props.AddNodes(bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(fileName)))
	props.AddNodes(applicationInfo("LastSaved")...)

	meta := bfbx73.MetaData().AddNodes(bfbx73.Version(100))
	for _, field := range []func(string) *fbx.Node{
		bfbx73.Title, bfbx73.Subject, bfbx73.Author, bfbx73.Keywords, bfbx73.Revision, bfbx73.Comment,
	} {
		meta.AddNodes(field(""))
	}

	return bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(fbxVersion),
		bfbx73.EncryptionType(0),
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Year(1970), bfbx73.Month(1), bfbx73.Day(1),
			bfbx73.Hour(10), bfbx73.Minute(0), bfbx73.Second(0), bfbx73.Millisecond(0),
		),
		bfbx73.Creator(creator),
		bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
			bfbx73.Type("UserData"),
			bfbx73.Version(100),
			meta,
			props,
		),
	)
}

func globalSettings() *fbx.Node {
	axis := func(name string, v int32) []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P(name, "int", "Integer", "", v),
			bfbx73.P(name+"Sign", "int", "Integer", "", int32(1)),
		}
	}
	props := bfbx73.Properties70()
	props.AddNodes(axis("UpAxis", 1)...)
	props.AddNodes(axis("FrontAxis", 2)...)
	props.AddNodes(axis("CoordAxis", 0)...)
	props.AddNodes(axis("OriginalUpAxis", 1)...)
	props.AddNodes(
		bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(100)),
		bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", float64(100)),
		bfbx73.P("AmbientColor", "ColorRGB", "Color", "", float64(0), float64(0), float64(0)),
	)
	return bfbx73.GlobalSettings().AddNodes(bfbx73.Version(1000), props)
}

// definitions holds the property templates of the object types exporters
// emit: models (null roots and limb nodes) and their attributes.
func definitions() *fbx.Node {
	return bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
		bfbx73.ObjectType("Model").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxNode").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("QuaternionInterpolate", "enum", "", "", int32(0)),
					bfbx73.P("Show", "bool", "", "", int32(1)),
					bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
					bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
					bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
					bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
					bfbx73.P("Visibility Inheritance", "Visibility Inheritance", "", "", int32(1)),
				),
			),
		),
		bfbx73.ObjectType("NodeAttribute").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxSkeleton").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("Size", "double", "Number", "", float64(10)),
					bfbx73.P("LimbLength", "double", "Number", "H", float64(1)),
				),
			),
		),
	)
}

func (b *Builder) countDefinitions() {
	counts := make(map[string]int32)
	for _, object := range b.objects.Nodes {
		counts[object.Name]++
	}

	defs := b.Root().GetNode("Definitions")
	total := int32(1) // GlobalSettings
	for name, count := range counts {
		total += count
		var objectType *fbx.Node
		for _, ot := range defs.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			defs.AddNode(objectType)
		}
		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}
	defs.GetOrAddNode(bfbx73.Count(0)).Properties[0] = total
}

func (b *Builder) Root() *fbx.Node {
	return &b.f.Root
}

func (b *Builder) NewID() int64 {
	b.lastID++
	return b.lastID
}

// Cache remembers exporter state under key so an object shared by several
// parents is emitted once.
func (b *Builder) Cache(key string, v interface{}) {
	b.cache[key] = v
}

func (b *Builder) Cached(key string) (interface{}, bool) {
	v, ok := b.cache[key]
	return v, ok
}

func (b *Builder) AddObjects(nodes ...*fbx.Node)     { b.objects.AddNodes(nodes...) }
func (b *Builder) AddConnections(nodes ...*fbx.Node) { b.connections.AddNodes(nodes...) }

// Connect links child under parent, 0 being the scene root.
func (b *Builder) Connect(child, parent int64) {
	b.connections.AddNodes(bfbx73.C("OO", child, parent))
}

// seekBuffer is the in-memory io.WriteSeeker the encoder needs to patch node
// end offsets.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, errors.Errorf("Invalid whence %d", whence)
	}
	if base+offset < 0 {
		return 0, errors.Errorf("Seek before start")
	}
	s.pos = int(base + offset)
	return int64(s.pos), nil
}

func (b *Builder) Write(w io.Writer) error {
	b.countDefinitions()
	var sb seekBuffer
	if err := fbx.Write(&sb, b.f); err != nil {
		return errors.Wrapf(err, "Failed to encode fbx")
	}
	_, err := w.Write(sb.buf)
	return err
}

// Dump returns the node tree in text form.
func (b *Builder) Dump() string {
	b.countDefinitions()
	return b.f.SPrint()
}

// Read parses a binary FBX file, used to check exported scenes.
func Read(data []byte) (*fbx.FBX, error) {
	f, err := fbx.Read(bytes.NewReader(data))
	return f, errors.Wrapf(err, "Failed to parse fbx")
}
