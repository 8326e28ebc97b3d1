package commands

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

const (
	flagFile      = "file"
	flagFileShort = "f"
	flagFileUsage = "read keys from this file ('-' for stdin)"
	stdinName     = "-"
)

// ErrInvalidKey is returned when a key cannot be parsed as the configured key type.
var ErrInvalidKey = errors.New("invalid key")

// keySpec binds a key type to its parsing, formatting, ordering and
// arena encoding.
type keySpec[K any] struct {
	name    string
	parse   func(string) (K, error)
	format  func(K) string
	compare func(a, b K) int
	codec   rbtree.KeyCodec[K]
}

var intKeys = keySpec[int64]{
	name: config.KeyTypeInt,
	parse: func(raw string) (int64, error) {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %w", ErrInvalidKey, raw, err)
		}

		return value, nil
	},
	format: func(key int64) string {
		return strconv.FormatInt(key, 10)
	},
	compare: cmp.Compare[int64],
	codec:   rbtree.Int64Keys{},
}

var stringKeys = keySpec[string]{
	name:    config.KeyTypeString,
	parse:   func(raw string) (string, error) { return raw, nil },
	format:  func(key string) string { return key },
	compare: strings.Compare,
	codec:   rbtree.StringKeys{},
}

// readKeys returns the raw keys from args, or from --file, or from stdin
// when neither is given.
func readKeys(cmd *cobra.Command, args []string, file string) ([]string, error) {
	if len(args) > 0 && file != "" {
		return nil, fmt.Errorf("%w: keys given both as arguments and --%s", ErrInvalidKey, flagFile)
	}

	if len(args) > 0 {
		return args, nil
	}

	if file == "" || file == stdinName {
		return scanKeys(cmd.InOrStdin())
	}

	handle, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open keys file: %w", err)
	}

	defer handle.Close()

	return scanKeys(handle)
}

func scanKeys(reader io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Split(bufio.ScanWords)

	var keys []string

	for scanner.Scan() {
		keys = append(keys, scanner.Text())
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}

	return keys, nil
}

// parseKeys converts every raw key, stopping at the first failure.
func parseKeys[K any](ks keySpec[K], raw []string) ([]K, error) {
	keys := make([]K, 0, len(raw))

	for _, item := range raw {
		key, err := ks.parse(item)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// insertAll adds keys to tree and returns how many were inserted.
func insertAll[K any](tree *rbtree.Tree[K], keys []K, unique bool) int {
	inserted := 0

	for _, key := range keys {
		if !unique {
			tree.Insert(key)
			inserted++

			continue
		}

		if ok, _ := tree.InsertUnique(key); ok {
			inserted++
		}
	}

	return inserted
}

// buildTree parses raw and inserts it into a fresh tree.
func buildTree[K any](ks keySpec[K], raw []string, unique bool) (*rbtree.Tree[K], error) {
	keys, err := parseKeys(ks, raw)
	if err != nil {
		return nil, err
	}

	tree := rbtree.NewWithAllocator(rbtree.NewAllocator[K](), ks.compare)
	insertAll(tree, keys, unique)

	return tree, nil
}
