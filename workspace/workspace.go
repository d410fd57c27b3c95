// Package workspace implements spec §2's Workspace: URI→file binding,
// parser ownership, and filesystem scan/watch over a FileGraph. Grounded
// on the teacher's server/workspace.go (the bare Root/Files struct) and
// server/server.go's tempDir-per-session pattern, generalized from a
// single hard-coded Faust root into the scan-root-from-initialize model
// spec §9's REDESIGN note requires, and from the teacher's unused
// otiai10/copy import into an actual include-path mirror.
package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/otiai10/copy"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/file"
	"github.com/lsfproject/lsf/filegraph"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/lsferr"
	"github.com/lsfproject/lsf/logging"
	"github.com/lsfproject/lsf/transport"
	"github.com/lsfproject/lsf/util"
)

// NewParser builds a fresh cst.Parser for one file. tree-sitter parsers
// are not safe to share across files reparsed concurrently, so
// Workspace asks for one per file, mirroring tsparser.New's per-call
// allocation.
type NewParser func() (cst.Parser, error)

// Workspace is the owner of every File in the session: Root scans
// populate it with Local nodes, include_path materializes External
// nodes from a read-only mirror, and didOpen/didChange/didClose bind
// LSP document URIs to FileGraph nodes. mu is a multi-reader/
// single-writer lock over the workspace's own fields (roots, temp dir,
// URI bindings, open set), taken inside each method. Feature ops and
// Change reach a File without holding it; they are serialized only by
// the File's and the FileGraph's own locks.
type Workspace struct {
	mu sync.RWMutex

	Root        util.Path
	IncludePath util.Path
	tempDir     util.Path
	includeMirror util.Path

	ld        *langdef.LanguageDefinition
	newParser NewParser
	encoding  transport.PositionEncodingKind
	sourceExt string // file extension (with dot) a scan/watch admits, e.g. ".dsp"

	graph *filegraph.FileGraph
	byURI map[transport.DocumentURI]uint32
	open  map[transport.DocumentURI]bool

	watcher    *fsnotify.Watcher
	watchClose chan struct{}
}

// New returns an empty Workspace bound to a language definition, a
// per-file parser factory, the negotiated position encoding, and the
// source-file extension its scans/watches admit.
func New(ld *langdef.LanguageDefinition, newParser NewParser, encoding transport.PositionEncodingKind, sourceExt string) *Workspace {
	return &Workspace{
		ld:        ld,
		newParser: newParser,
		encoding:  encoding,
		sourceExt: sourceExt,
		graph:     filegraph.New(),
		byURI:     map[transport.DocumentURI]uint32{},
		open:      map[transport.DocumentURI]bool{},
	}
}

// DeriveRoot implements spec §9's fix for "the source's workspace
// scanner contains a hard-coded directory path": the scan root comes
// from initialize's rootUri, and the include path comes from the
// settings key of the same name (spec §6 "Settings" — include_path),
// resolved relative to that root when it isn't already absolute.
func DeriveRoot(rootURI transport.DocumentURI, includePath string) (root util.Path, include util.Path, err error) {
	root, err = util.URI2path(string(rootURI))
	if err != nil {
		return "", "", err
	}
	if includePath == "" {
		return root, "", nil
	}
	if filepath.IsAbs(includePath) {
		return root, includePath, nil
	}
	return root, filepath.Join(root, includePath), nil
}

// Init binds the workspace to a root/include_path pair, materializes a
// session temp directory (named with a uuid, replacing the teacher's
// os.MkdirTemp(os_temp, "faustlsp-") with a collision-proof name), and
// mirrors include_path into it so External nodes resolve against a
// stable snapshot instead of a live, separately-watched tree.
func (w *Workspace) Init(rootURI transport.DocumentURI, includePath string) error {
	root, include, err := DeriveRoot(rootURI, includePath)
	if err != nil {
		return lsferr.Wrap(lsferr.IoError, "deriving workspace root", err)
	}

	tempDir := filepath.Join(os.TempDir(), "lsf-"+uuid.New().String())
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return lsferr.Wrap(lsferr.IoError, "creating session temp dir", err)
	}

	w.mu.Lock()
	w.Root = root
	w.IncludePath = include
	w.tempDir = tempDir
	w.mu.Unlock()

	if include != "" {
		mirror := filepath.Join(tempDir, "include")
		if err := copy.Copy(include, mirror); err != nil {
			logging.Logger.Warn("could not mirror include_path", zap.String("include_path", include), zap.Error(err))
		} else {
			w.mu.Lock()
			w.includeMirror = mirror
			w.mu.Unlock()
		}
	}
	return nil
}

// UpdateIncludePath implements the include_path half of
// workspace/didChangeConfiguration (spec §6 Settings): re-mirrors the
// new include path into the session temp dir and re-scans it as
// External nodes. A client that changes include_path without ever
// touching rootUri never needs a second Init call, which would
// otherwise hand out a fresh, unrelated temp dir.
func (w *Workspace) UpdateIncludePath(ctx context.Context, includePath string) error {
	w.mu.RLock()
	root, tempDir := w.Root, w.tempDir
	w.mu.RUnlock()

	include := includePath
	if include != "" && !filepath.IsAbs(include) {
		include = filepath.Join(root, include)
	}

	mirror := ""
	if include != "" {
		mirror = filepath.Join(tempDir, "include")
		if err := copy.Copy(include, mirror); err != nil {
			return lsferr.Wrap(lsferr.IoError, "mirroring include_path", err)
		}
	}

	w.mu.Lock()
	w.IncludePath = include
	w.includeMirror = mirror
	w.mu.Unlock()

	if mirror == "" {
		return nil
	}
	if err := w.scanDir(mirror, filegraph.External); err != nil {
		return err
	}
	return w.graph.UpdateNodesSymbols(ctx)
}

// Shutdown stops the filesystem watcher, if running, and removes the
// session temp directory (teacher's Server.Run cleanup, moved here
// since the temp dir is now the Workspace's, not the Server's).
func (w *Workspace) Shutdown() {
	w.mu.Lock()
	watcher := w.watcher
	tempDir := w.tempDir
	w.watcher = nil
	w.mu.Unlock()

	if watcher != nil {
		close(w.watchClose)
		watcher.Close()
	}
	if tempDir != "" {
		os.RemoveAll(tempDir)
	}
}

// Scan walks Root (as Local nodes) and the include mirror, if any (as
// External nodes), opening every file ending in sourceExt. Per-file
// read errors are logged and skipped per spec §7's IoError policy,
// aggregated with multierr so a scan with some unreadable files still
// admits the rest and reports what it missed, rather than aborting or
// silently losing errors.
func (w *Workspace) Scan(ctx context.Context) error {
	var errs error

	w.mu.RLock()
	root, mirror := w.Root, w.includeMirror
	w.mu.RUnlock()

	if root != "" {
		errs = multierr.Append(errs, w.scanDir(root, filegraph.Local))
	}
	if mirror != "" {
		errs = multierr.Append(errs, w.scanDir(mirror, filegraph.External))
	}

	if err := w.graph.UpdateNodesSymbols(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (w *Workspace) scanDir(dir string, loc filegraph.Location) error {
	var errs error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = multierr.Append(errs, lsferr.Wrap(lsferr.IoError, "walking "+path, err))
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != w.sourceExt {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			errs = multierr.Append(errs, lsferr.Wrap(lsferr.IoError, "reading "+path, err))
			return nil
		}
		uri := transport.DocumentURI(util.Path2URI(path))
		if _, err := w.addFile(uri, content, loc); err != nil {
			errs = multierr.Append(errs, err)
		}
		return nil
	})
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// addFile admits uri into the graph the first time it is seen; a
// second call (a rescan, or a watch event for an already-tracked file)
// instead pushes content into the existing File as a full-buffer
// update, so on-disk edits made outside the client still take effect.
func (w *Workspace) addFile(uri transport.DocumentURI, content []byte, loc filegraph.Location) (*file.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id, ok := w.byURI[uri]; ok {
		if n, ok := w.graph.Node(id); ok {
			if err := n.File.Update([]transport.TextDocumentContentChangeEvent{{Text: string(content)}}); err != nil {
				return nil, lsferr.Wrap(lsferr.ParseError, "reparsing "+string(uri), err)
			}
			return n.File, nil
		}
	}

	parser, err := w.newParser()
	if err != nil {
		return nil, lsferr.Wrap(lsferr.IoError, "creating parser for "+string(uri), err)
	}
	handle, err := util.FromURI(string(uri))
	if err != nil {
		return nil, lsferr.Wrap(lsferr.IoError, "invalid URI "+string(uri), err)
	}
	f, err := file.New(handle, content, parser, w.ld, w.encoding)
	if err != nil {
		return nil, lsferr.Wrap(lsferr.ParseError, "parsing "+string(uri), err)
	}

	id := w.graph.AddFile(uri, loc, f)
	w.byURI[uri] = id
	return f, nil
}

// OpenFromURI implements textDocument/didOpen (spec §6): binds content
// to uri, admitting it to the FileGraph as a Local node if this is the
// first time it's been seen, then re-runs cross-file resolution since
// a newly opened file may satisfy other files' undefined usages, or vice
// versa. Callers hold no lock: addFile takes the workspace lock itself,
// and the open-set update takes it again, separately.
func (w *Workspace) OpenFromURI(ctx context.Context, uri transport.DocumentURI, content []byte) error {
	if _, err := w.addFile(uri, content, filegraph.Local); err != nil {
		return err
	}
	w.mu.Lock()
	w.open[uri] = true
	w.mu.Unlock()
	return w.graph.UpdateNodesSymbols(ctx)
}

// Change implements textDocument/didChange: applies a batch of content
// changes to the bound File and re-runs cross-file resolution.
func (w *Workspace) Change(ctx context.Context, uri transport.DocumentURI, changes []transport.TextDocumentContentChangeEvent) error {
	f, ok := w.File(uri)
	if !ok {
		return lsferr.New(lsferr.IoError, "change for unopened document "+string(uri))
	}
	if err := f.Update(changes); err != nil {
		return lsferr.Wrap(lsferr.ParseError, "updating "+string(uri), err)
	}
	return w.graph.UpdateNodesSymbols(ctx)
}

// CloseFromURI implements textDocument/didClose: the document is no
// longer open in the client's editor, but its FileGraph node is kept —
// another open file may still import it, and the scan that discovered
// it on disk still owns it (spec §3 "FileGraph exclusively owns every
// Node's File").
func (w *Workspace) CloseFromURI(uri transport.DocumentURI) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.open, uri)
}

// File returns the File bound to uri, if any.
func (w *Workspace) File(uri transport.DocumentURI) (*file.File, bool) {
	w.mu.RLock()
	id, ok := w.byURI[uri]
	w.mu.RUnlock()
	if !ok {
		return nil, false
	}
	n, ok := w.graph.Node(id)
	if !ok {
		return nil, false
	}
	return n.File, true
}

// IsOpen reports whether uri is currently open in the client's editor.
func (w *Workspace) IsOpen(uri transport.DocumentURI) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.open[uri]
}

// Resolver exposes the FileGraph's cross-file symbol resolution as a
// file.Resolver, the shape every feature op that can cross a file
// boundary expects.
func (w *Workspace) Resolver() file.Resolver {
	return w.graph.Resolve
}

// Watch starts an fsnotify watch over Root (spec's DOMAIN STACK:
// out-of-band filesystem changes trigger rescans), adapted from the
// teacher's util.WatchReplicateDir event switch. Unlike that original —
// which mirrors every event into a shadow directory unconditionally —
// this only reacts to sourceExt files and reruns the affected file's
// admission plus a fresh cross-file resolution pass.
func (w *Workspace) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return lsferr.Wrap(lsferr.IoError, "starting filesystem watcher", err)
	}

	w.mu.RLock()
	root := w.Root
	w.mu.RUnlock()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
	if err != nil {
		watcher.Close()
		return lsferr.Wrap(lsferr.IoError, "watching workspace root", err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.watchClose = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop(ctx, watcher)
	return nil
}

func (w *Workspace) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != w.sourceExt {
				continue
			}
			w.handleFSEvent(ctx, event)
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		case <-w.watchClose:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Workspace) handleFSEvent(ctx context.Context, event fsnotify.Event) {
	uri := transport.DocumentURI(util.Path2URI(event.Name))

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		if id, ok := w.byURI[uri]; ok {
			w.graph.RemoveFile(id)
			delete(w.byURI, uri)
		}
		delete(w.open, uri)
		w.mu.Unlock()
		return
	}

	if w.IsOpen(uri) {
		// The client owns this buffer's content; an on-disk write racing
		// with an unsaved edit must not clobber it.
		return
	}

	content, err := os.ReadFile(event.Name)
	if err != nil {
		logging.Logger.Warn("workspace watch: read failed", zap.String("path", event.Name), zap.Error(err))
		return
	}
	if _, err := w.addFile(uri, content, filegraph.Local); err != nil {
		logging.Logger.Warn("workspace watch: admitting changed file failed", zap.String("path", event.Name), zap.Error(err))
		return
	}
	if err := w.graph.UpdateNodesSymbols(ctx); err != nil {
		logging.Logger.Warn("workspace watch: cross-file resolution failed", zap.Error(err))
	}
}
