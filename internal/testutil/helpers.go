// Package testutil provides naming and data helpers shared by tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateTestBucketName returns a unique, S3-valid bucket name with the
// given prefix.
func GenerateTestBucketName(prefix string) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().Unix(), rand.Intn(10000))
}

// GenerateTestKey returns a unique object key with the given prefix.
func GenerateTestKey(prefix string) string {
	return fmt.Sprintf("%s/test-%d-%04d.bin", prefix, time.Now().UnixNano(), rand.Intn(10000))
}

// GenerateRandomData returns size bytes of deterministic pseudo-random data.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	r := rand.New(rand.NewSource(int64(size)))
	_, _ = r.Read(data)
	return data
}
