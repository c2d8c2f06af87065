// Package checksum hashes raw file bytes and computes the structural
// fingerprints (etags) of parsed documents.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
)

// Sum returns the hex-encoded SHA-256 digest of raw file content. It is
// recorded on documents and file metadata but plays no part in etags.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// fields writes length-prefixed strings so that adjacent fields can never
// run together ("ab","c" and "a","bc" hash differently).
type fields struct{ h hash.Hash }

func newFields() fields { return fields{h: sha256.New()} }

func (f fields) str(s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	f.h.Write(n[:])
	f.h.Write([]byte(s))
}

func (f fields) list(ss []string) {
	f.str(fmt.Sprintf("list:%d", len(ss)))
	for _, s := range ss {
		f.str(s)
	}
}

func (f fields) sortedList(ss []string) {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	f.list(sorted)
}

func (f fields) dict(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	f.str(fmt.Sprintf("map:%d", len(keys)))
	for _, k := range keys {
		f.str(k)
		f.str(m[k])
	}
}

func (f fields) sum() string { return hex.EncodeToString(f.h.Sum(nil)) }
