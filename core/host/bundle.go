package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/zip"

	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/webapp"
)

// bundleExts are archive extensions deployed from app_base.
var bundleExts = []string{".war", ".zip"}

func isBundle(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range bundleExts {
		if ext == e {
			return true
		}
	}
	return false
}

func bundleDir(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p))
}

// scanBundles unpacks every bundle in app_base that has no directory of the
// same name yet. Directories are deployed afterwards by scanDirectories.
func (h *Host) scanBundles(ctx context.Context) error {
	entries, err := os.ReadDir(h.appBase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isBundle(e.Name()) {
			continue
		}
		src := filepath.Join(h.appBase, e.Name())
		dst := bundleDir(src)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := Unpack(src, dst); err != nil {
			h.logger.ErrorContext(ctx, "bundle unpack failed", logger.Path(src), logger.Error(err))
			continue
		}
		h.logger.InfoContext(ctx, "bundle unpacked", logger.Path(src))
	}
	return nil
}

// Unpack extracts a zip archive into dst, refusing entries that would land
// outside of it.
func Unpack(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open bundle %s: %w", src, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// watch deploys bundles dropped into app_base while the host runs.
func (h *Host) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(h.appBase); err != nil {
		_ = w.Close()
		return err
	}
	h.watcher = w
	h.watchDone = make(chan struct{})
	go h.watchLoop(w, h.watchDone)
	return nil
}

func (h *Host) watchLoop(w *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isBundle(ev.Name) {
				continue
			}
			if _, busy := h.pending.LoadOrStore(ev.Name, struct{}{}); busy {
				continue
			}
			go h.deployBundle(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Warn("bundle watcher error", logger.Error(err))
		}
	}
}

// deployBundle waits for the archive to stop changing, then unpacks and
// deploys it unless its prefix is already taken.
func (h *Host) deployBundle(src string) {
	defer h.pending.Delete(src)

	var lastSize int64 = -1
	for {
		time.Sleep(h.settle)
		info, err := os.Stat(src)
		if err != nil {
			return
		}
		if info.Size() == lastSize {
			break
		}
		lastSize = info.Size()
	}

	name := filepath.Base(bundleDir(src))
	prefix := PrefixFor(name)
	if h.isStopped() || h.deployed(prefix) {
		return
	}
	dst := bundleDir(src)
	if err := Unpack(src, dst); err != nil {
		h.logger.Error("bundle unpack failed", logger.Path(src), logger.Error(err))
		return
	}
	if err := h.Deploy(h.ctx, webapp.Config{Prefix: prefix, DocRoot: dst, Reloadable: true}); err != nil {
		h.logger.Error("bundle deployment failed", logger.App(prefix), logger.Error(err))
	}
}
