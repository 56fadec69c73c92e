package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"

	"github.com/ozzyboz/rsm-starship-game/combat"
)

// GenerateUUID returns a random battle id
func GenerateUUID() string {
	return uuid.NewString()
}

// Clamp restricts v to [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// extractIP returns the host part of the request's remote address
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// EncodeState msgpack-encodes a snapshot. Field order is fixed, so equal
// states always encode to equal bytes.
func EncodeState(state combat.BattleState) ([]byte, error) {
	return msgpack.Marshal(state)
}

// DecodeState reverses EncodeState
func DecodeState(raw []byte) (combat.BattleState, error) {
	var state combat.BattleState
	err := msgpack.Unmarshal(raw, &state)
	return state, err
}

// StateDigest is the hex blake3 hash of an encoded snapshot
func StateDigest(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func compressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(src))); err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}
	return buf.Bytes(), nil
}
