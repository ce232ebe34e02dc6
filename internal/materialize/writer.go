// internal/materialize/writer.go
//
// Record-to-file writer.
//
// Context
// -------
// Each record becomes one file:
//
//	<siteDir>/[<group>/]<name>.<ext>
//
// Only templates carry a group; the extension comes from
// resource.Extension.  Files are written whole and overwrite whatever was
// there.  Directories are created on first use.
//
// Notes
// -----
//   - Names and groups come from `\w+` captures, so they are always safe
//     single path elements.
//   - A write error stops the pass immediately; earlier files stay written.
package materialize

import (
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/yanizio/syncee/internal/resource"
)

// Writer writes records below a site directory.
type Writer struct {
	fs  billy.Filesystem
	log *zap.SugaredLogger
}

// New returns a Writer on fs.  A nil logger discards events.
func New(fs billy.Filesystem, log *zap.SugaredLogger) *Writer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Writer{fs: fs, log: log}
}

// Path returns the file path for rec under siteDir.
func (w *Writer) Path(siteDir string, kind resource.Kind, rec resource.Record) string {
	return w.fs.Join(w.dir(siteDir, kind, rec), rec.Filename())
}

func (w *Writer) dir(siteDir string, kind resource.Kind, rec resource.Record) string {
	if kind == resource.Templates && rec.Group != "" {
		return w.fs.Join(siteDir, rec.Group)
	}
	return siteDir
}

// Write materializes records in order and returns how many files it wrote.
func (w *Writer) Write(siteDir string, kind resource.Kind, records iter.Seq[resource.Record]) (int, error) {
	n := 0
	for rec := range records {
		dir := w.dir(siteDir, kind, rec)
		if err := w.ensureDir(dir); err != nil {
			return n, err
		}

		path := w.fs.Join(dir, rec.Filename())
		body := []byte(rec.Text())
		if err := util.WriteFile(w.fs, path, body, 0o644); err != nil {
			return n, fmt.Errorf("write %s: %w", path, err)
		}
		w.log.Infow("wrote file", "kind", kind.String(), "path", path, "bytes", len(body))
		n++
	}
	return n, nil
}

func (w *Writer) ensureDir(dir string) error {
	_, err := w.fs.Stat(dir)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	w.log.Infow("created dir", "path", dir)
	return nil
}
