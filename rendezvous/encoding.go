// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/tether/lib/netutil"
)

// Content encodings understood by the relay and client.
const (
	EncodingIdentity = ""
	EncodingZstd     = "zstd"
	EncodingLZ4      = "lz4"
)

// ErrUnsupportedEncoding is returned for a Content-Encoding other than
// identity, zstd or lz4.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// contentType is the media type of every request and response body.
const contentType = "application/cbor"

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent
// use with EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("rendezvous: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBodySize*MaxOffersPerTarget))
	if err != nil {
		panic("rendezvous: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeBody compresses data for the named encoding.
func encodeBody(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingIdentity:
		return data, nil
	case EncodingZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case EncodingLZ4:
		var compressed bytes.Buffer
		writer := lz4.NewWriter(&compressed)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return compressed.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedEncoding, encoding)
	}
}

// decodeBody reads body in the named encoding. Both the compressed and
// the decompressed size are bounded by limit.
func decodeBody(body io.Reader, encoding string, limit int64) ([]byte, error) {
	switch encoding {
	case EncodingIdentity, EncodingZstd, EncodingLZ4:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedEncoding, encoding)
	}
	raw, err := netutil.ReadBounded(body, limit)
	if err != nil {
		return nil, err
	}
	switch encoding {
	case EncodingIdentity:
		return raw, nil
	case EncodingZstd:
		decoded, err := zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(decoded)) > limit {
			return nil, fmt.Errorf("%w (decompressed)", netutil.ErrBodyTooLarge)
		}
		return decoded, nil
	case EncodingLZ4:
		decoded, err := netutil.ReadBounded(lz4.NewReader(bytes.NewReader(raw)), limit)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedEncoding, encoding)
	}
}

// negotiate picks the response encoding from an Accept-Encoding header,
// preferring zstd.
func negotiate(acceptEncoding string) string {
	offered := map[string]bool{}
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		offered[strings.ToLower(name)] = true
	}
	switch {
	case offered[EncodingZstd]:
		return EncodingZstd
	case offered[EncodingLZ4]:
		return EncodingLZ4
	default:
		return EncodingIdentity
	}
}
