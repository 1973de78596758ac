// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package grpcwire registers the message codec and compressor used on
// Bureau's gRPC surfaces.
//
// Messages are CBOR, encoded by lib/codec, and selected per call with
// the content subtype [CodecName]:
//
//	conn.Invoke(ctx, method, request, response, grpc.CallContentSubtype(grpcwire.CodecName))
//
// The codec is registered alongside gRPC's protobuf codec rather than
// forced on the server, so protobuf services (the standard health
// service) keep working on the same listener.
//
// [CompressorName] selects zstd compression. Importing this package
// registers both.
package grpcwire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"

	"github.com/bureau-foundation/wscontext/lib/codec"
)

// CodecName is the gRPC content subtype for CBOR messages
// ("application/grpc+cbor" on the wire).
const CodecName = "cbor"

// CompressorName is the grpc-encoding value for zstd.
const CompressorName = "zstd"

// maxDecompressedSize bounds a single decompressed message. Matches
// gRPC's default receive limit.
const maxDecompressedSize = 4 << 20

func init() {
	encoding.RegisterCodecV2(cborCodec{})
	encoding.RegisterCompressor(zstdCompressor{})
}

// cborCodec implements encoding.CodecV2. A message is encoded into a
// single heap buffer; decoding materializes the received slices first
// since CBOR decoding needs contiguous input.
type cborCodec struct{}

func (cborCodec) Marshal(v any) (mem.BufferSlice, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpcwire: marshal %T: %w", v, err)
	}
	return mem.BufferSlice{mem.SliceBuffer(data)}, nil
}

func (cborCodec) Unmarshal(data mem.BufferSlice, v any) error {
	if err := codec.Unmarshal(data.Materialize(), v); err != nil {
		return fmt.Errorf("grpcwire: unmarshal %T: %w", v, err)
	}
	return nil
}

func (cborCodec) Name() string { return CodecName }

// zstdEncoder and zstdDecoder are shared by every stream. Both are safe
// for concurrent use when driven through EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("grpcwire: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxDecompressedSize),
	)
	if err != nil {
		panic("grpcwire: zstd decoder initialization failed: " + err.Error())
	}
}

type zstdCompressor struct{}

// Compress buffers the message and compresses it in one frame when the
// writer is closed. gRPC always closes the writer after writing a
// single message.
func (zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return &frameWriter{destination: w}, nil
}

func (zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("grpcwire: reading compressed message: %w", err)
	}
	plain, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("grpcwire: zstd decompress: %w", err)
	}
	return bytes.NewReader(plain), nil
}

func (zstdCompressor) Name() string { return CompressorName }

type frameWriter struct {
	destination io.Writer
	buffer      bytes.Buffer
	closed      bool
}

func (f *frameWriter) Write(p []byte) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	return f.buffer.Write(p)
}

func (f *frameWriter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	compressed := zstdEncoder.EncodeAll(f.buffer.Bytes(), nil)
	if _, err := f.destination.Write(compressed); err != nil {
		return fmt.Errorf("grpcwire: writing compressed message: %w", err)
	}
	return nil
}
