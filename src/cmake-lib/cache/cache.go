// Package cache reads CMakeCache.txt files.
package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FileName is the name of the cache file CMake writes in every build directory.
const FileName = "CMakeCache.txt"

const _advancedSuffix = "-ADVANCED"

// EntryType is the type annotation of a cache entry.
type EntryType string

const (
	TypeBool          EntryType = "BOOL"
	TypeString        EntryType = "STRING"
	TypePath          EntryType = "PATH"
	TypeFilePath      EntryType = "FILEPATH"
	TypeInternal      EntryType = "INTERNAL"
	TypeStatic        EntryType = "STATIC"
	TypeUninitialized EntryType = "UNINITIALIZED"
)

var _entryPattern = regexp.MustCompile(`^("[^"]*"|[^:="]+):([^=]+)=(.*)$`)

// Entry is a single KEY:TYPE=VALUE line.
type Entry struct {
	Key        string    `json:"key"`
	Type       EntryType `json:"type"`
	Value      string    `json:"value"`
	Helpstring string    `json:"helpstring,omitempty"`
	Advanced   bool      `json:"advanced,omitempty"`
}

// Bool interprets the value using CMake's truthiness rules.
func (e Entry) Bool() bool {
	v := strings.ToUpper(strings.TrimSpace(e.Value))
	switch v {
	case "ON", "YES", "TRUE", "Y":
		return true
	case "", "0", "OFF", "NO", "FALSE", "N", "IGNORE", "NOTFOUND":
		return false
	}
	if strings.HasSuffix(v, "-NOTFOUND") {
		return false
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n != 0
	}
	return false
}

// Cache is a parsed CMakeCache.txt.
type Cache struct {
	path    string
	entries map[string]Entry
}

// Read opens and parses the cache file at path.
func Read(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	c.path = path
	return c, nil
}

// Parse reads cache entries from r.
func Parse(r io.Reader) (*Cache, error) {
	c := &Cache{entries: make(map[string]Entry)}
	advanced := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var help []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			help = help[:0]
			continue
		case strings.HasPrefix(trimmed, "//"):
			help = append(help, strings.TrimSpace(strings.TrimPrefix(trimmed, "//")))
			continue
		case strings.HasPrefix(trimmed, "#"):
			continue
		}

		m := _entryPattern.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, fmt.Errorf("malformed cache line %q", trimmed)
		}
		key := strings.Trim(m[1], `"`)
		entry := Entry{
			Key:        key,
			Type:       EntryType(m[2]),
			Value:      m[3],
			Helpstring: strings.Join(help, " "),
		}
		help = help[:0]

		if base, ok := strings.CutSuffix(key, _advancedSuffix); ok && entry.Type == TypeInternal {
			advanced[base] = entry.Bool()
			continue
		}
		c.entries[key] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for key, adv := range advanced {
		if e, ok := c.entries[key]; ok {
			e.Advanced = adv
			c.entries[key] = e
		}
	}
	return c, nil
}

// Path returns the file the cache was read from, if any.
func (c *Cache) Path() string {
	return c.path
}

// Get returns the entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Value returns the raw value for key, or the empty string.
func (c *Cache) Value(key string) string {
	return c.entries[key].Value
}

// Keys returns all entry keys in sorted order.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of all entries as a key/value map.
func (c *Cache) Values() map[string]string {
	values := make(map[string]string, len(c.entries))
	for k, e := range c.entries {
		values[k] = e.Value
	}
	return values
}

// CompilerPath returns the compiler CMake selected for lang (e.g. "CXX").
func (c *Cache) CompilerPath(lang string) string {
	return c.Value("CMAKE_" + lang + "_COMPILER")
}
