// Package cache implements the cross-build dependency cache (spec §3
// "DependencyCache", §4.4, §6 "Dependency cache file"): a mapping from
// output file path to a list of dependency paths (absolute for system
// files, build-dir-relative for in-project ones), persisted as one line
// per entry and rewritten atomically on clean shutdown.
//
// Open Question (spec §9): this implementation keeps the original
// policy of reading the cache once at startup and unlinking it
// immediately, rewriting it atomically only on a clean exit. A crash
// mid-build loses the cache (forcing a full re-scan next run) but can
// never leave a stale-but-present cache file lying around to be
// silently trusted by a later run. See DESIGN.md.
package cache

import (
	"bufio"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Cache is the in-memory dependency cache for one planner run.
type Cache struct {
	entries map[string][]string
}

// Load reads path once and removes it, per the Open Question policy
// above. A missing file is not an error: it yields an empty cache, and
// every built file is then treated as maximally dirty (spec §8 scenario
// 7 "Stale cache recovery").
func Load(path string) (*Cache, error) {
	c := &Cache{entries: make(map[string][]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		c.entries[fields[0]] = slices.Clone(fields[1:])
	}
	scanErr := sc.Err()
	f.Close()
	if scanErr != nil {
		return nil, scanErr
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return c, nil
}

// Get returns the cached dependency list for an output path.
func (c *Cache) Get(output string) ([]string, bool) {
	deps, ok := c.entries[output]
	return deps, ok
}

// Set replaces the cached dependency list for an output path (spec §4.5
// step 4, "Replace the cache entry for this File with the new deps list").
func (c *Cache) Set(output string, deps []string) {
	c.entries[output] = slices.Clone(deps)
}

// Delete removes any cache entry for an output path. The cleanup pass
// does not call it.
func (c *Cache) Delete(output string) {
	delete(c.entries, output)
}

// Save writes the cache atomically: write-to-temp then rename (spec §6).
func Save(c *Cache, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	bw := bufio.NewWriter(tmp)
	for _, k := range keys {
		bw.WriteString(k)
		for _, dep := range c.entries[k] {
			bw.WriteByte(' ')
			bw.WriteString(dep)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Entries returns a defensive copy of every output->deps pair.
func (c *Cache) Entries() map[string][]string {
	out := make(map[string][]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = slices.Clone(v)
	}
	return out
}
