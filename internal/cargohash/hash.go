package cargohash

import (
	"encoding/hex"
	"fmt"
	"net/url"
)

// sourceKindRegistry is the discriminant of the host tool's internal
// SourceKind::Registry enum variant, in declaration order
// (Git, Path, Registry, LocalRegistry, Directory). It is hashed as an
// 8-byte little-endian machine word ahead of the source string, matching
// the derived Hash implementation on that enum.
const sourceKindRegistry uint64 = 2

// Hash16 returns the 16 lowercase hex characters the host tool derives
// for a `SourceKind::Registry` source identified by s: SipHash-2-4 keyed
// (0, 0) over the discriminant followed by s's bytes and a trailing 0xff
// sentinel (the host language's string-hashing convention), serialized
// low byte first.
func Hash16(s string) string {
	stream := make([]byte, 0, 8+len(s)+1)
	var discr [8]byte
	for i := range discr {
		discr[i] = byte(sourceKindRegistry >> (8 * uint(i)))
	}
	stream = append(stream, discr[:]...)
	stream = append(stream, s...)
	stream = append(stream, 0xff)

	h := sipHash24(stream, 0, 0)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(h >> (8 * uint(i)))
	}
	return hex.EncodeToString(buf[:])
}

// RegistryShortname is the short filesystem name cargo gives a registry
// index clone: "<host>-<hash16>". For the default crates.io index this is
// "github.com-1ecc6299db9ec823".
func RegistryShortname(registryURL string) (string, error) {
	u, err := url.Parse(registryURL)
	if err != nil {
		return "", fmt.Errorf("%s not a URL: %w", registryURL, err)
	}
	return fmt.Sprintf("%s-%s", u.Hostname(), Hash16(registryURL)), nil
}

// GitCacheDirName is the cache directory name for a git-sourced package
// clone: "<last-url-segment-or-_empty>-<hash16(url)>".
func GitCacheDirName(repoURL string) string {
	seg := lastPathSegment(repoURL)
	if seg == "" {
		seg = "_empty"
	}
	return fmt.Sprintf("%s-%s", seg, Hash16(repoURL))
}

func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segs := u.Path
	for len(segs) > 0 && segs[len(segs)-1] == '/' {
		segs = segs[:len(segs)-1]
	}
	if i := lastIndexByte(segs, '/'); i >= 0 {
		return segs[i+1:]
	}
	return segs
}

func lastIndexByte(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}
	return -1
}
