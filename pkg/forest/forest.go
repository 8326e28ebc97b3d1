// Package forest keeps named red-black trees on a sharded arena and saves
// them as snapshot directories.
package forest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Sumatoshi-tech/ordtree/pkg/persist"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

// ManifestVersion is the snapshot layout version written to the manifest.
const ManifestVersion = 1

const (
	manifestBasename = "manifest"
	arenaBasename    = "arena"
	snapshotDirPerm  = 0o750
)

// Sentinel errors.
var (
	ErrManifestMismatch = errors.New("snapshot manifest does not match")
	ErrUnknownTree      = errors.New("unknown tree")
)

// Options configures a Forest.
type Options struct {
	// Shards is the number of allocators trees are spread over.
	Shards int
	// HibernationThreshold is split evenly between the shards.
	HibernationThreshold int
	// KeyType is recorded in the manifest and checked on load.
	KeyType string
}

// TreeEntry describes one tree in a manifest.
type TreeEntry struct {
	Name  string           `json:"name"  yaml:"name"`
	Shard int              `json:"shard" yaml:"shard"`
	State rbtree.TreeState `json:"state" yaml:"state"`
}

// Manifest is the index file of a snapshot directory.
type Manifest struct {
	Version int         `json:"version"  yaml:"version"`
	KeyType string      `json:"key_type" yaml:"key_type"`
	Shards  int         `json:"shards"   yaml:"shards"`
	Trees   []TreeEntry `json:"trees"    yaml:"trees"`
}

// Forest is a set of named trees. Trees with the same name always land on
// the same shard. A Forest is not safe for concurrent use.
type Forest[K any] struct {
	opts       Options
	compare    func(a, b K) int
	allocators *rbtree.ShardedAllocator[K]
	trees      map[string]*rbtree.Tree[K]
}

// New creates an empty forest.
func New[K any](opts Options, codec rbtree.KeyCodec[K], compare func(a, b K) int) *Forest[K] {
	if opts.Shards <= 0 {
		opts.Shards = 1
	}

	return &Forest[K]{
		opts:       opts,
		compare:    compare,
		allocators: rbtree.NewShardedAllocator(opts.Shards, opts.HibernationThreshold, codec),
		trees:      map[string]*rbtree.Tree[K]{},
	}
}

// Tree returns the tree called name, creating it if needed.
func (f *Forest[K]) Tree(name string) *rbtree.Tree[K] {
	tree, ok := f.trees[name]
	if !ok {
		tree = rbtree.NewWithAllocator(f.allocators.GetShard(name), f.compare)
		f.trees[name] = tree
	}

	return tree
}

// Lookup returns the tree called name if it exists.
func (f *Forest[K]) Lookup(name string) (*rbtree.Tree[K], bool) {
	tree, ok := f.trees[name]

	return tree, ok
}

// Names returns the tree names in lexical order.
func (f *Forest[K]) Names() []string {
	names := make([]string, 0, len(f.trees))
	for name := range f.trees {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Len returns the total number of keys over all trees.
func (f *Forest[K]) Len() int {
	total := 0
	for _, tree := range f.trees {
		total += tree.Len()
	}

	return total
}

// Drop erases the tree called name and forgets it.
func (f *Forest[K]) Drop(name string) error {
	tree, ok := f.trees[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTree, name)
	}

	tree.Erase()
	delete(f.trees, name)

	return nil
}

// Allocators exposes the sharded arena backing the forest.
func (f *Forest[K]) Allocators() *rbtree.ShardedAllocator[K] {
	return f.allocators
}

// Manifest describes the current trees.
func (f *Forest[K]) Manifest() Manifest {
	manifest := Manifest{
		Version: ManifestVersion,
		KeyType: f.opts.KeyType,
		Shards:  len(f.allocators.Shards()),
		Trees:   make([]TreeEntry, 0, len(f.trees)),
	}

	for _, name := range f.Names() {
		manifest.Trees = append(manifest.Trees, TreeEntry{
			Name:  name,
			Shard: f.allocators.ShardIndex(name),
			State: f.trees[name].State(),
		})
	}

	return manifest
}

// Save writes the forest into dir: one arena file per shard plus a manifest
// encoded with codec. The forest stays usable afterwards.
func (f *Forest[K]) Save(dir string, codec persist.Codec) (err error) {
	err = os.MkdirAll(dir, snapshotDirPerm)
	if err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	err = f.allocators.Hibernate()
	if err != nil {
		return fmt.Errorf("hibernate: %w", errors.Join(err, f.allocators.Boot()))
	}

	defer func() {
		bootErr := f.allocators.Boot()
		if bootErr != nil {
			err = errors.Join(err, fmt.Errorf("boot: %w", bootErr))
		}
	}()

	err = f.allocators.Serialize(filepath.Join(dir, arenaBasename))
	if err != nil {
		return fmt.Errorf("save arena: %w", err)
	}

	manifest := f.Manifest()

	err = persist.NewPersister[Manifest](manifestBasename, codec).Save(dir, func() *Manifest { return &manifest })
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	return nil
}

// Load reads a forest saved by Save. opts.KeyType must match the manifest;
// the shard count always comes from the manifest.
func Load[K any](dir string, opts Options, codec rbtree.KeyCodec[K], compare func(a, b K) int,
	manifestCodec persist.Codec,
) (*Forest[K], error) {
	var manifest Manifest

	err := persist.NewPersister[Manifest](manifestBasename, manifestCodec).
		Load(dir, func(loaded *Manifest) { manifest = *loaded })
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	if manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrManifestMismatch, manifest.Version, ManifestVersion)
	}

	if manifest.KeyType != opts.KeyType {
		return nil, fmt.Errorf("%w: key type %q, want %q", ErrManifestMismatch, manifest.KeyType, opts.KeyType)
	}

	opts.Shards = manifest.Shards
	f := New(opts, codec, compare)

	err = f.allocators.Deserialize(filepath.Join(dir, arenaBasename))
	if err != nil {
		return nil, fmt.Errorf("load arena: %w", err)
	}

	err = f.allocators.Boot()
	if err != nil {
		return nil, fmt.Errorf("boot arena: %w", err)
	}

	for _, entry := range manifest.Trees {
		if entry.Shard != f.allocators.ShardIndex(entry.Name) {
			return nil, fmt.Errorf("%w: tree %q recorded on shard %d", ErrManifestMismatch, entry.Name, entry.Shard)
		}

		tree, restoreErr := rbtree.RestoreTree(f.allocators.GetShard(entry.Name), compare, entry.State)
		if restoreErr != nil {
			return nil, fmt.Errorf("restore tree %q: %w", entry.Name, restoreErr)
		}

		f.trees[entry.Name] = tree
	}

	return f, nil
}

// Exists reports whether dir holds a snapshot manifest encoded with codec.
func Exists(dir string, codec persist.Codec) bool {
	return persist.NewPersister[Manifest](manifestBasename, codec).Exists(dir)
}

// DiskUsage sums the sizes of the regular files directly inside dir.
func DiskUsage(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read snapshot dir: %w", err)
	}

	var total int64

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return 0, fmt.Errorf("stat %s: %w", entry.Name(), infoErr)
		}

		total += info.Size()
	}

	return total, nil
}
