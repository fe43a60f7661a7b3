package bco

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/xjson"
)

// ETag digests the document body. object_id, spec_version and etag itself
// are not part of it.
func ETag(base domain.BaseBCO) (string, error) {
	raw, err := xjson.Marshal(base)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyETag reports whether doc still matches its recorded digest.
func VerifyETag(doc *domain.BCO) (bool, error) {
	if doc == nil {
		return false, domain.ErrInvalidInput
	}
	etag, err := ETag(doc.BaseBCO)
	if err != nil {
		return false, err
	}
	return etag == doc.ETag, nil
}
