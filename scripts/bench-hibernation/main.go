// bench-hibernation measures heap memory before and after Hibernate() on a
// forest of trees, and the size of the snapshot written from it.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --trees 16 --keys 200000 --shards 4 \
//	  --pattern random --profile-dir docs/profiles/hibernation
package main

import (
	"cmp"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/ordtree/pkg/forest"
	"github.com/Sumatoshi-tech/ordtree/pkg/persist"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
}

func main() {
	treeCount := flag.Int("trees", 16, "Number of named trees")
	keyCount := flag.Int("keys", 200000, "Keys per tree")
	shards := flag.Int("shards", 4, "Allocator shards")
	pattern := flag.String("pattern", "random", "Key pattern: ascending, random")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")

	flag.Parse()

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	trees := forest.New(forest.Options{Shards: *shards, KeyType: "int"}, rbtree.Int64Keys{}, cmp.Compare[int64])
	rng := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // benchmark input.

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{label: label, heapInUse: m.HeapInuse, heapSys: m.HeapSys})
		log.Printf("  [heap] %-24s inuse=%10s  sys=%10s", label, humanize.Bytes(m.HeapInuse), humanize.Bytes(m.HeapSys))
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	takeSnapshot("empty")

	started := time.Now()

	for treeIdx := range *treeCount {
		tree := trees.Tree(fmt.Sprintf("tree-%03d", treeIdx))

		for key := range *keyCount {
			if strings.EqualFold(*pattern, "ascending") {
				tree.Insert(int64(key))
			} else {
				tree.Insert(rng.Int64())
			}
		}
	}

	log.Printf("built %d trees with %s keys in %v", *treeCount, humanize.Comma(int64(trees.Len())), time.Since(started))

	takeSnapshot("built")
	writeHeapProfile("heap_built.prof")

	started = time.Now()

	if err := trees.Allocators().Hibernate(); err != nil {
		log.Fatalf("hibernate: %v", err)
	}

	log.Printf("hibernated in %v", time.Since(started))

	takeSnapshot("hibernated")
	writeHeapProfile("heap_hibernated.prof")

	started = time.Now()

	if err := trees.Allocators().Boot(); err != nil {
		log.Fatalf("boot: %v", err)
	}

	log.Printf("booted in %v", time.Since(started))

	takeSnapshot("booted")

	snapDir, err := os.MkdirTemp("", "ordtree-bench-")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(snapDir)

	if err := trees.Save(snapDir, persist.NewYAMLCodec()); err != nil {
		log.Fatalf("save: %v", err)
	}

	size, err := forest.DiskUsage(snapDir)
	if err != nil {
		log.Fatalf("disk usage: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-24s %12s %12s\n", "Phase", "InUse", "Sys")

	for _, s := range snapshots {
		fmt.Printf("%-24s %12s %12s\n", s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys))
	}

	fmt.Println()
	fmt.Println("=== Hibernation ===")

	built, hibernated := snapshots[1], snapshots[2]
	delta := float64(built.heapInUse) - float64(hibernated.heapInUse)
	fmt.Printf("  built -> hibernated: %s freed (%.1f%%)\n",
		humanize.Bytes(uint64(max(delta, 0))), delta/float64(built.heapInUse)*100)
	fmt.Printf("  snapshot on disk: %s for %s keys\n", humanize.Bytes(uint64(size)), humanize.Comma(int64(trees.Len())))
}
