// Package synth writes composed manifests to disk.
package synth

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/serialize"
)

// Layout selects how manifests are laid out in the output directory.
type Layout string

const (
	// LayoutFile writes one multi-document file, {outdir}/{chart}.k8s.yaml.
	LayoutFile Layout = "file"
	// LayoutFolder writes one file per resource, {outdir}/{chart}/{Kind}.{name}.k8s.yaml.
	LayoutFolder Layout = "folder"

	DefaultChart  = "AppChart"
	DefaultOutDir = "dist"

	fileSuffix = ".k8s.yaml"
)

// Options configures a Writer.
type Options struct {
	OutDir string
	Chart  string
	Layout Layout
}

// Writer writes manifests according to its Options.
type Writer struct {
	opts Options
	log  *zap.Logger
}

// New returns a Writer. A nil logger disables logging.
func New(opts Options, log *zap.Logger) (*Writer, error) {
	if opts.OutDir == "" {
		opts.OutDir = DefaultOutDir
	}
	if opts.Chart == "" {
		opts.Chart = DefaultChart
	}
	switch opts.Layout {
	case "":
		opts.Layout = LayoutFolder
	case LayoutFile, LayoutFolder:
	default:
		return nil, fmt.Errorf("unknown layout %q: must be %q or %q", opts.Layout, LayoutFile, LayoutFolder)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{opts: opts, log: log}, nil
}

// Write renders manifests and writes them, in order. Nothing is written if
// any manifest fails to render.
func (w *Writer) Write(manifests []composer.Manifest) ([]wetwire.ManifestInfo, error) {
	files, infos, err := w.render(manifests)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.path, err)
		}
		w.log.Debug("wrote manifest file", zap.String("path", f.path), zap.Int("bytes", len(f.data)))
	}

	w.log.Info("synthesized manifests",
		zap.String("chart", w.opts.Chart),
		zap.String("layout", string(w.opts.Layout)),
		zap.Int("manifests", len(manifests)),
		zap.Int("files", len(files)))
	return infos, nil
}

type file struct {
	path string
	data []byte
}

func (w *Writer) render(manifests []composer.Manifest) ([]file, []wetwire.ManifestInfo, error) {
	infos := make([]wetwire.ManifestInfo, 0, len(manifests))

	if w.opts.Layout == LayoutFile {
		data, err := Render(manifests)
		if err != nil {
			return nil, nil, err
		}
		path := filepath.Join(w.opts.OutDir, w.opts.Chart+fileSuffix)
		for _, m := range manifests {
			infos = append(infos, info(m, path))
		}
		return []file{{path: path, data: data}}, infos, nil
	}

	files := make([]file, 0, len(manifests))
	for _, m := range manifests {
		data, err := serialize.ManifestYAML(m.Object)
		if err != nil {
			return nil, nil, fmt.Errorf("rendering %s %s: %w", m.Kind, m.Name, err)
		}
		path := filepath.Join(w.opts.OutDir, w.opts.Chart, FileName(m))
		files = append(files, file{path: path, data: data})
		infos = append(infos, info(m, path))
	}
	return files, infos, nil
}

// Render returns manifests as one multi-document YAML stream.
func Render(manifests []composer.Manifest) ([]byte, error) {
	objs := make([]runtime.Object, 0, len(manifests))
	for _, m := range manifests {
		objs = append(objs, m.Object)
	}
	return serialize.YAMLStream(objs...)
}

// FileName is the per-resource file name of m.
func FileName(m composer.Manifest) string {
	return fmt.Sprintf("%s.%s%s", m.Kind, m.Name, fileSuffix)
}

func info(m composer.Manifest, path string) wetwire.ManifestInfo {
	return wetwire.ManifestInfo{Kind: string(m.Kind), Name: m.Name, Namespace: m.Namespace, File: path}
}
