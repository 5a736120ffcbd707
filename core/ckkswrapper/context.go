// Package ckkswrapper bundles the lattigo CKKS objects needed to measure
// operation latencies and to read the multiplicative depth of a parameter set.
package ckkswrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// DefaultLiteral is a small parameter set with five multiplicative levels.
var DefaultLiteral = ckks.ParametersLiteral{
	LogN:            12,
	LogQ:            []int{45, 35, 35, 35, 35, 35},
	LogP:            []int{45},
	LogDefaultScale: 35,
}

// HeContext holds the client-side objects of one parameter set.
type HeContext struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen *rlwe.KeyGenerator
	sk   *rlwe.SecretKey
}

// ServerKit is what an evaluating party needs: the evaluator with its
// relinearization key.
type ServerKit struct {
	Evaluator *ckks.Evaluator
}

// NewParams builds parameters from a literal, filling the default secret and
// error distributions when unset.
func NewParams(lit ckks.ParametersLiteral) (ckks.Parameters, error) {
	if lit.Xs == nil {
		lit.Xs = rlwe.DefaultXs
	}
	if lit.Xe == nil {
		lit.Xe = rlwe.DefaultXe
	}
	params, err := ckks.NewParametersFromLiteral(lit)
	if err != nil {
		return ckks.Parameters{}, fmt.Errorf("failed to create CKKS parameters: %w", err)
	}
	return params, nil
}

// NewHeContext creates a context on DefaultLiteral.
func NewHeContext() (*HeContext, error) {
	params, err := NewParams(DefaultLiteral)
	if err != nil {
		return nil, err
	}
	return NewHeContextWithParams(params), nil
}

// NewHeContextWithParams generates a fresh key pair for params.
func NewHeContextWithParams(params ckks.Parameters) *HeContext {
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Encryptor: rlwe.NewEncryptor(params, pk),
		Decryptor: rlwe.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
	}
}

// GenServerKit generates the relinearization key and an evaluator using it.
func (h *HeContext) GenServerKit() *ServerKit {
	rlk := h.kgen.GenRelinearizationKeyNew(h.sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk)
	return &ServerKit{Evaluator: ckks.NewEvaluator(h.Params, evk)}
}

// Levels is the number of multiplications a fresh ciphertext supports before
// it must be bootstrapped.
func Levels(params ckks.Parameters) int {
	return params.MaxLevel()
}

// Levels of the context parameters.
func (h *HeContext) Levels() int {
	return Levels(h.Params)
}

// EncryptVector encodes values at the maximum level and encrypts them.
func (h *HeContext) EncryptVector(values []float64) (*rlwe.Ciphertext, error) {
	pt := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	pt.Scale = h.Params.DefaultScale()
	if err := h.Encoder.Encode(values, pt); err != nil {
		return nil, err
	}
	return h.Encryptor.EncryptNew(pt)
}

// DecryptVector decrypts ct and returns the real part of every slot.
func (h *HeContext) DecryptVector(ct *rlwe.Ciphertext) ([]float64, error) {
	pt := h.Decryptor.DecryptNew(ct)
	decoded := make([]complex128, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, decoded); err != nil {
		return nil, err
	}
	out := make([]float64, len(decoded))
	for i, v := range decoded {
		out[i] = real(v)
	}
	return out, nil
}
