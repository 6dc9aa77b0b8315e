package ablyutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"time"
)

// BaseID returns a base64 encoded 9 random bytes to be used in idempotent rest
// publishing as part of message id.
func BaseID() (string, error) {
	r := make([]byte, 9)
	_, err := rand.Read(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(r), nil
}

// Nonce gives a token request nonce made of the current time in milliseconds
// followed by random digits. It is unique in practice but not meant to be
// unpredictable.
func Nonce(now time.Time) string {
	var r [8]byte
	if _, err := rand.Read(r[:]); err != nil {
		binary.BigEndian.PutUint64(r[:], uint64(now.UnixNano()))
	}
	rnd := binary.BigEndian.Uint64(r[:]) % 1e10
	return strconv.FormatInt(now.UnixMilli(), 10) + padLeft(strconv.FormatUint(rnd, 10), 10)
}

func padLeft(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}
