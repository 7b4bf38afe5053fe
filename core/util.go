// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

func toBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func uint64ToBytes(val uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}

func float64ToBytes(val float64) []byte {
	return uint64ToBytes(math.Float64bits(val))
}
