package peernode

import (
	"strconv"
	"strings"
)

// FullName canonicalizes a raw peer name to "<server>_<character>",
// lowercased. If raw already contains '_', it is assumed to carry its own
// server prefix and is returned lowercased unchanged. localServer is the
// prefix prepended when raw has none (spec.md §4.A).
func FullName(localServer, raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(raw, "_") {
		return raw
	}
	return strings.ToLower(localServer) + "_" + raw
}

// ShortName strips localServer's prefix from raw if present, returning
// raw lowercased and unmodified otherwise (spec.md §4.A).
func ShortName(localServer, raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	prefix := strings.ToLower(localServer) + "_"
	if strings.HasPrefix(raw, prefix) {
		return raw[len(prefix):]
	}
	return raw
}

// ObserverGroup formats the synthetic group name backing an observer
// source entry keyed by key: "<localPeer>_<key>" (spec.md §4.A, §4.H).
func ObserverGroup(localPeer string, key uint32) string {
	return localPeer + "_" + strconv.FormatUint(uint64(key), 10)
}

// IsObserverGroup reports whether name has the shape of a reserved
// observer group: it contains '_' and its last character is a digit
// (spec.md §3).
func IsObserverGroup(name string) bool {
	if !strings.Contains(name, "_") {
		return false
	}
	if name == "" {
		return false
	}
	last := name[len(name)-1]
	return last >= '0' && last <= '9'
}
