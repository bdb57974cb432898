// Copyright 2026 The Strand Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for Strand's Transformer building
// blocks: scaled dot-product and multi-head attention, the
// relative-position variant, position-wise feed-forward networks, layer
// normalization, sinusoidal positional encoding, and encoder/decoder
// stacks.
//
// Example:
//
//	backend := cpu.New()
//	rng := rand.New(rand.NewSource(1))
//	mha := nn.NewMultiHeadedAttention(8, 512, 0.1, rng, backend)
//	out := mha.Forward(x, x, x, nn.CausalMask(seq, backend))
package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/tensor"
)

// Module is the common interface of single-input network components.
type Module[B tensor.Backend] = nn.Module[B]

// Trainable is implemented by modules whose behavior differs between
// training and inference.
type Trainable = nn.Trainable

// Parameter is a named learnable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a named parameter around the given tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// ShapeError reports incompatible tensor shapes. Modules panic with it on
// contract violations.
type ShapeError = nn.ShapeError

// ConfigError reports invalid construction-time configuration.
type ConfigError = nn.ConfigError

// Layers

// Linear is a fully connected layer over the last input dimension.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-uniform weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// Dropout randomly zeroes activations during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout module with drop probability p in [0, 1).
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand, backend B) *Dropout[B] {
	return nn.NewDropout(p, rng, backend)
}

// LayerNorm normalizes activations over the feature dimension.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a layer normalization module with eps = 1e-6.
func NewLayerNorm[B tensor.Backend](features int, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(features, backend)
}

// NewLayerNormEps creates a layer normalization module with an explicit eps.
func NewLayerNormEps[B tensor.Backend](features int, eps float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNormEps(features, eps, backend)
}

// SublayerConnection wraps a sublayer in pre-norm, dropout and a residual
// connection.
type SublayerConnection[B tensor.Backend] = nn.SublayerConnection[B]

// NewSublayerConnection creates the residual wrapper.
func NewSublayerConnection[B tensor.Backend](features int, dropout float32, rng *rand.Rand, backend B) *SublayerConnection[B] {
	return nn.NewSublayerConnection(features, dropout, rng, backend)
}

// Attention

// Attention is the interface shared by both attention variants.
type Attention[B tensor.Backend] = nn.Attention[B]

// MultiHeadedAttention is standard multi-head attention.
type MultiHeadedAttention[B tensor.Backend] = nn.MultiHeadedAttention[B]

// NewMultiHeadedAttention creates multi-head attention over dModel split
// across heads.
func NewMultiHeadedAttention[B tensor.Backend](heads, dModel int, dropout float32, rng *rand.Rand, backend B) *MultiHeadedAttention[B] {
	return nn.NewMultiHeadedAttention(heads, dModel, dropout, rng, backend)
}

// RelativePositionAttention is multi-head attention with learned
// relative-position representations.
type RelativePositionAttention[B tensor.Backend] = nn.RelativePositionAttention[B]

// NewRelativePositionAttention creates the relative-position variant with
// distances clipped to maxRelative.
func NewRelativePositionAttention[B tensor.Backend](heads, dModel, maxRelative int, dropout float32, rng *rand.Rand, backend B) *RelativePositionAttention[B] {
	return nn.NewRelativePositionAttention(heads, dModel, maxRelative, dropout, rng, backend)
}

// ScaledDotProductAttention computes softmax(Q K^T / sqrt(d_k)) V, returning
// the attended output and the attention weights.
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	dropout *Dropout[B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return nn.ScaledDotProductAttention(query, key, value, mask, dropout)
}

// CausalMask returns a (1, size, size) lower-triangular attention mask.
func CausalMask[B tensor.Backend](size int, backend B) *tensor.Tensor[float32, B] {
	return nn.CausalMask(size, backend)
}

// PaddingMask returns a (batch, 1, seqLen) mask of valid positions.
func PaddingMask[B tensor.Backend](lengths []int, seqLen int, backend B) *tensor.Tensor[float32, B] {
	return nn.PaddingMask(lengths, seqLen, backend)
}

// Feed-forward and embeddings

// PositionwiseFeedForward is the per-position two-layer network.
type PositionwiseFeedForward[B tensor.Backend] = nn.PositionwiseFeedForward[B]

// NewPositionwiseFeedForward creates a feed-forward block expanding dModel
// to dFF and back.
func NewPositionwiseFeedForward[B tensor.Backend](dModel, dFF int, dropout float32, rng *rand.Rand, backend B) *PositionwiseFeedForward[B] {
	return nn.NewPositionwiseFeedForward(dModel, dFF, dropout, rng, backend)
}

// PositionalEncoding adds sinusoidal position information.
type PositionalEncoding[B tensor.Backend] = nn.PositionalEncoding[B]

// NewPositionalEncoding precomputes the sinusoidal table up to maxLen.
func NewPositionalEncoding[B tensor.Backend](dModel, maxLen int, dropout float32, rng *rand.Rand, backend B) *PositionalEncoding[B] {
	return nn.NewPositionalEncoding(dModel, maxLen, dropout, rng, backend)
}

// Embedding maps token ids to dense vectors.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates an embedding table initialized from N(0, 1).
func NewEmbedding[B tensor.Backend](vocabSize, dim int, rng *rand.Rand, backend B) *Embedding[B] {
	return nn.NewEmbedding(vocabSize, dim, rng, backend)
}

// ScaledEmbedding is the Transformer input embedding, scaled by sqrt(dim).
type ScaledEmbedding[B tensor.Backend] = nn.ScaledEmbedding[B]

// NewScaledEmbedding creates a scaled input embedding.
func NewScaledEmbedding[B tensor.Backend](vocabSize, dim int, rng *rand.Rand, backend B) *ScaledEmbedding[B] {
	return nn.NewScaledEmbedding(vocabSize, dim, rng, backend)
}

// Encoder/decoder stacks

// LayerConfig describes one encoder or decoder layer.
type LayerConfig = nn.LayerConfig

// EncoderLayer is self-attention plus feed-forward with residual wiring.
type EncoderLayer[B tensor.Backend] = nn.EncoderLayer[B]

// NewEncoderLayer builds one encoder layer.
func NewEncoderLayer[B tensor.Backend](c LayerConfig, rng *rand.Rand, backend B) *EncoderLayer[B] {
	return nn.NewEncoderLayer(c, rng, backend)
}

// Encoder is a stack of encoder layers with a final layer norm.
type Encoder[B tensor.Backend] = nn.Encoder[B]

// NewEncoder builds an n-layer encoder from the config.
func NewEncoder[B tensor.Backend](c LayerConfig, n int, rng *rand.Rand, backend B) *Encoder[B] {
	return nn.NewEncoder(c, n, rng, backend)
}

// DecoderLayer adds masked self-attention and cross-attention over encoder
// memory.
type DecoderLayer[B tensor.Backend] = nn.DecoderLayer[B]

// NewDecoderLayer builds one decoder layer.
func NewDecoderLayer[B tensor.Backend](c LayerConfig, rng *rand.Rand, backend B) *DecoderLayer[B] {
	return nn.NewDecoderLayer(c, rng, backend)
}

// Decoder is a stack of decoder layers with a final layer norm.
type Decoder[B tensor.Backend] = nn.Decoder[B]

// NewDecoder builds an n-layer decoder from the config.
func NewDecoder[B tensor.Backend](c LayerConfig, n int, rng *rand.Rand, backend B) *Decoder[B] {
	return nn.NewDecoder(c, n, rng, backend)
}
