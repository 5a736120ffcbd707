package ckkswrapper

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// CheatBootstrap restores a ciphertext to the maximum level by decrypting and
// re-encrypting it. It needs the secret key and stands in for a real
// bootstrap when measuring the cost of a refresh.
func (h *HeContext) CheatBootstrap(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	pt := h.Decryptor.DecryptNew(ct)
	values := make([]complex128, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, values); err != nil {
		return nil, err
	}

	fresh := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(values, fresh); err != nil {
		return nil, err
	}
	return h.Encryptor.EncryptNew(fresh)
}

// Consumed is the number of levels ct has used since encryption.
func (h *HeContext) Consumed(ct *rlwe.Ciphertext) int {
	return h.Params.MaxLevel() - ct.Level()
}

// NeedsBootstrap reports whether ct is at or below threshold levels. A
// threshold of 0 means no multiplication is possible any more.
func NeedsBootstrap(ct *rlwe.Ciphertext, threshold int) bool {
	if threshold < 0 {
		threshold = 0
	}
	return ct.Level() <= threshold
}
