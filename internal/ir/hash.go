package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainResolution prefixes resolution digests. The version suffix allows
// the algorithm to change without colliding with old digests.
const DomainResolution = "nimbus/resolution/v1"

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResolutionDigest identifies what an invocation resolved to: the executed
// action path, the binding it was reached through ("" when none) and the
// effective parameters. Two invocations with equal digests ran the same
// action with the same inherited configuration.
func ResolutionDigest(path, binding string, effective ParameterSet) (string, error) {
	obj := map[string]any{
		"path":       path,
		"parameters": effective,
	}
	if binding != "" {
		obj["binding"] = binding
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ResolutionDigest: %w", err)
	}
	return hashWithDomain(DomainResolution, canonical), nil
}
