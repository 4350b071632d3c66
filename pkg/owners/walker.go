package owners

import (
	"path"
	"strings"

	"github.com/gravitational/trace"
)

// ConfigHierarchyWalker walks the chain of owner configs that govern a file:
// from the file's directory up to the tree root, nearest first, optionally
// continuing into the default config of the meta config branch. This order
// is what gives closer owners precedence.
type ConfigHierarchyWalker struct {
	store                *ConfigStore
	project              string
	includeDefaultConfig bool
}

func NewConfigHierarchyWalker(store *ConfigStore, project string) *ConfigHierarchyWalker {
	return &ConfigHierarchyWalker{store: store, project: project}
}

// WithDefaultConfig enables continuing into the meta config branch after the
// tree root.
func (w *ConfigHierarchyWalker) WithDefaultConfig() *ConfigHierarchyWalker {
	w.includeDefaultConfig = true
	return w
}

// Visit loads the config of each ancestor directory of filePath, nearest
// first, at the given revision (branch tip when empty), and hands it to the
// visitor. Directories without a config are skipped silently. The walk stops
// when the visitor returns false or a visited config sets
// ignoreParentOwners. Unparseable configs go to onInvalid and do not stop
// the walk.
func (w *ConfigHierarchyWalker) Visit(branch, revision, filePath string, visitor ConfigVisitor, onInvalid InvalidConfigCallback) error {
	if visitor == nil {
		return trace.BadParameter("visitor must not be nil")
	}
	if !strings.HasPrefix(filePath, "/") {
		return trace.BadParameter("file path %q must be absolute", filePath)
	}
	if revision == "" {
		rev, err := w.store.HeadRevision(branch)
		if err != nil {
			if trace.IsNotFound(err) {
				return nil
			}
			return trace.Wrap(err)
		}
		revision = rev
	}

	for _, folder := range AncestorFolders(filePath) {
		key, err := NewOwnerConfigKey(w.project, branch, folder)
		if err != nil {
			return trace.Wrap(err)
		}
		config, err := w.store.Load(key, revision)
		if err != nil {
			if IsInvalidConfig(err) {
				if onInvalid != nil {
					onInvalid(key.FilePath(w.store.Naming()), err)
				}
				continue
			}
			return trace.Wrap(err)
		}
		if config == nil {
			continue
		}
		if !visitor(*config) {
			return nil
		}
		if config.IgnoreParentOwners {
			return nil
		}
	}

	if w.includeDefaultConfig && branch != MetaConfigBranch {
		return trace.Wrap(w.visitDefaultConfig(visitor, onInvalid))
	}
	return nil
}

func (w *ConfigHierarchyWalker) visitDefaultConfig(visitor ConfigVisitor, onInvalid InvalidConfigCallback) error {
	key, err := NewOwnerConfigKey(w.project, MetaConfigBranch, "/")
	if err != nil {
		return trace.Wrap(err)
	}
	config, err := w.store.Load(key, "")
	if err != nil {
		if IsInvalidConfig(err) {
			if onInvalid != nil {
				onInvalid(key.FilePath(w.store.Naming()), err)
			}
			return nil
		}
		return trace.Wrap(err)
	}
	if config == nil {
		return nil
	}
	visitor(*config)
	return nil
}

// AncestorFolders returns the directories governing filePath, from its
// immediate parent up to the root.
func AncestorFolders(filePath string) []string {
	folders := make([]string, 0)
	dir := path.Dir(NormalizeFolder(filePath))
	for {
		folders = append(folders, dir)
		if dir == "/" {
			return folders
		}
		dir = path.Dir(dir)
	}
}
