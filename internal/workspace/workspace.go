// Package workspace owns the set of open documents and workspace
// folders for one session. All mutation goes through Workspace
// methods; nothing else holds a live reference to its state.
package workspace

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/tsugumi-sys/pygls/internal/document"
)

// ErrDocumentNotFound reports an operation against a URI that is not
// currently tracked.
var ErrDocumentNotFound = errors.New("document not found")

// Workspace tracks open documents and registered folders. It is safe
// for concurrent use.
type Workspace struct {
	mu sync.RWMutex

	root     uri.URI
	syncKind protocol.TextDocumentSyncKind
	folders  map[string]protocol.WorkspaceFolder
	docs     map[uri.URI]*document.Document
	logger   logrus.FieldLogger
}

// New builds a workspace rooted at rootURI. Documents opened later
// inherit syncKind. folders may be nil.
func New(rootURI uri.URI, syncKind protocol.TextDocumentSyncKind, folders []protocol.WorkspaceFolder, logger logrus.FieldLogger) *Workspace {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &Workspace{
		root:     rootURI,
		syncKind: syncKind,
		folders:  make(map[string]protocol.WorkspaceFolder),
		docs:     make(map[uri.URI]*document.Document),
		logger:   logger,
	}
	for _, f := range folders {
		w.folders[f.URI] = f
	}
	return w
}

// RootURI returns the workspace root as given at construction.
func (w *Workspace) RootURI() uri.URI { return w.root }

// RootPath returns the local filesystem path of the root, or the
// empty string when the root is not a file URI.
func (w *Workspace) RootPath() string {
	parsed, err := uri.Parse(string(w.root))
	if err != nil || !strings.HasPrefix(string(parsed), "file://") {
		return ""
	}
	return parsed.Filename()
}

// IsLocal reports whether the root names a local filesystem location.
func (w *Workspace) IsLocal() bool {
	return w.RootPath() != ""
}

// GetDocument returns the tracked document for u, or a fresh
// disk-backed document when u is not open. Transient documents are
// never cached, so repeated calls observe external edits.
func (w *Workspace) GetDocument(u uri.URI) *document.Document {
	w.mu.RLock()
	doc, ok := w.docs[u]
	w.mu.RUnlock()
	if ok {
		return doc
	}
	return document.NewTransient(u, w.logger)
}

// PutDocument starts tracking item, replacing any previous document
// under the same URI.
func (w *Workspace) PutDocument(item protocol.TextDocumentItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := uri.URI(item.URI)
	w.docs[u] = document.New(u, item.Text, item.Version, w.syncKind, w.logger)
}

// UpdateDocument applies ev to the tracked document at u and stamps
// version on it. The version is recorded even when ev changes nothing.
func (w *Workspace) UpdateDocument(u uri.URI, ev document.ChangeEvent, version int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[u]
	if !ok {
		return fmt.Errorf("update %s: %w", u, ErrDocumentNotFound)
	}
	if err := doc.Apply(ev); err != nil {
		return err
	}
	doc.Version = version
	return nil
}

// RemoveDocument stops tracking u.
func (w *Workspace) RemoveDocument(u uri.URI) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[u]; !ok {
		return fmt.Errorf("remove %s: %w", u, ErrDocumentNotFound)
	}
	delete(w.docs, u)
	return nil
}

// Documents returns the URIs of all tracked documents.
func (w *Workspace) Documents() []uri.URI {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]uri.URI, 0, len(w.docs))
	for u := range w.docs {
		out = append(out, u)
	}
	return out
}

// AddFolder registers f, replacing any folder with the same URI.
func (w *Workspace) AddFolder(f protocol.WorkspaceFolder) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.folders[f.URI] = f
}

// RemoveFolder unregisters the folder at u. Removing an unknown
// folder is a no-op: clients may report removals the server never saw
// added.
func (w *Workspace) RemoveFolder(u string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.folders, u)
}

// Folders returns the registered workspace folders.
func (w *Workspace) Folders() []protocol.WorkspaceFolder {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]protocol.WorkspaceFolder, 0, len(w.folders))
	for _, f := range w.folders {
		out = append(out, f)
	}
	return out
}
