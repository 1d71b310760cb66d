package transform

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/nineking424/nificdc-sub002/pkg/record"
)

func init() {
	register("hash", "md5", 0, 0, hashFn(md5.New))
	register("hash", "sha1", 0, 0, hashFn(sha1.New))
	register("hash", "sha256", 0, 0, hashFn(sha256.New))
}

func hashFn(newHash func() hash.Hash) func(any, []any) (any, error) {
	return func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		h := newHash()
		h.Write([]byte(record.ToString(v)))
		return hex.EncodeToString(h.Sum(nil)), nil
	}
}
