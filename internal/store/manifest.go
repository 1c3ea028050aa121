// Package store implements the content-addressed object store and the
// path-keyed staleness index described in spec.md §3/§4.1.
package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Entry is one line of a manifest: an absolute path and the content stamp
// observed for it.
type Entry struct {
	Path string
	Hash string
	Size int64
}

// Manifest is a sorted, line-oriented record of path/hash/size triples.
// Canonical ordering is byte-wise ASCII over the path field (spec.md §3).
type Manifest []Entry

// Sort orders the manifest in place by path, byte-wise.
func (m Manifest) Sort() {
	sort.Slice(m, func(i, j int) bool { return m[i].Path < m[j].Path })
}

// Encode renders the manifest in its canonical on-disk form: one
// "<path>|<hash>|<size>" line per entry, LF-terminated, sorted by path.
//
// Two manifests that are logically identical (same set of entries) always
// encode to the same bytes, which is what makes the manifest digest stable
// (spec.md Invariant 5).
func (m Manifest) Encode() []byte {
	sorted := make(Manifest, len(m))
	copy(sorted, m)
	sorted.Sort()

	var b strings.Builder
	for _, e := range sorted {
		b.WriteString(e.Path)
		b.WriteByte('|')
		b.WriteString(e.Hash)
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(e.Size, 10))
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

// Digest returns the SHA-256 hex digest of the manifest's canonical
// encoding.
func (m Manifest) Digest() string {
	return HashBytes(m.Encode())
}

// ParseManifest decodes a manifest in the "<path>|<hash>|<size>" line format.
func ParseManifest(data []byte) (Manifest, error) {
	var out Manifest

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		entry, err := parseManifestLine(line)
		if err != nil {
			return nil, err
		}

		out = append(out, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning manifest: %w", err)
	}

	out.Sort()

	return out, nil
}

func parseManifestLine(line string) (Entry, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("malformed manifest line %q: expected 3 fields, got %d", line, len(parts))
	}

	size, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed manifest line %q: invalid size: %w", line, err)
	}

	return Entry{Path: parts[0], Hash: parts[1], Size: size}, nil
}

// HashBytes returns the SHA-256 hex digest of data. Digests are hex-encoded
// lowercase, per spec.md §4.1.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// EncodeLines joins lines with LF, matching the environment/args/wd file
// formats of spec.md §3 (one line per item, LF only).
func EncodeLines(lines []string) []byte {
	if len(lines) == 0 {
		return []byte{}
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	return []byte(b.String())
}
