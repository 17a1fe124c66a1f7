// Package hashing computes content digests shown next to files in a listing.
// The digests are for integrity display only.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ErrUnknownAlgorithm is returned by Parse for selectors outside Algorithms().
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

type Algorithm string

const (
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"
	SHA224     Algorithm = "sha224"
	SHA256     Algorithm = "sha256"
	SHA384     Algorithm = "sha384"
	SHA512     Algorithm = "sha512"
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"
)

// Default is used when a request does not name an algorithm.
const Default = MD5

var constructors = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA224: sha256.New224,
	SHA256: sha256.New,
	SHA384: sha512.New384,
	SHA512: sha512.New,
	SHA3_256: func() hash.Hash {
		return sha3.New256()
	},
	BLAKE2b256: func() hash.Hash {
		// only errors for an oversized key
		h, _ := blake2b.New256(nil)
		return h
	},
}

// Algorithms lists the supported selectors in display order.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA224, SHA256, SHA384, SHA512, SHA3_256, BLAKE2b256}
}

// Parse maps a client selector to an Algorithm. Matching ignores case and
// surrounding space. Unknown values fail instead of falling back to Default.
func Parse(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := constructors[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
	return a, nil
}

func (a Algorithm) String() string { return string(a) }

// Label is the upper-case name used in the UI selector.
func (a Algorithm) Label() string { return strings.ToUpper(string(a)) }

func (a Algorithm) New() (hash.Hash, error) {
	c, ok := constructors[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
	return c(), nil
}

// Sum returns the hex digest of data.
func Sum(data []byte, a Algorithm) (string, error) {
	h, err := a.New()
	if err != nil {
		return "", err
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumReader streams r into the digest and returns the hex sum and byte count.
func SumReader(r io.Reader, a Algorithm) (string, int64, error) {
	h, err := a.New()
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SumFile hashes the full content of the file at path.
func SumFile(path string, a Algorithm) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return SumReader(f, a)
}
