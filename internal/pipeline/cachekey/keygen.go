// internal/pipeline/cachekey/keygen.go
package cachekey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"sort"

	"bedrock-router/internal/pipeline/validate"
)

// Generator derives deterministic cache keys from validated requests.
//
// Whether the session id participates in the key is a policy choice:
// including it keeps responses private to a session, excluding it lets
// identical prompts share cache entries across sessions. The flag comes from
// configuration (cache.include_session_in_key); the shipped default includes
// it.
type Generator struct {
	includeSessionID bool
}

func NewGenerator(includeSessionID bool) *Generator {
	return &Generator{includeSessionID: includeSessionID}
}

// KeyFor computes a SHA-256 digest over a canonical serialization of the
// request: fields in a fixed order, metadata sorted by key, every segment
// length-prefixed so no combination of values can collide by concatenation.
// Equal logical requests always produce the identical key.
func (g *Generator) KeyFor(req *validate.ValidatedRequest) string {
	h := sha256.New()

	writeSegment(h, "application_name", req.AppName)
	writeSegment(h, "input_text", req.InputText)
	if g.includeSessionID {
		writeSegment(h, "session_id", req.SessionID)
	}

	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeSegment(h, "metadata."+k, req.Metadata[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeSegment(h hash.Hash, name, value string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(name)))
	h.Write(n[:])
	io.WriteString(h, name)
	binary.BigEndian.PutUint64(n[:], uint64(len(value)))
	h.Write(n[:])
	io.WriteString(h, value)
}
