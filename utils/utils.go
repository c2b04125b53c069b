package utils

import (
	"crypto/rand"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

func CacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return filepath.Join(cacheDir, "soter")
}

// Backoff returns the wait before the i-th retry: i^2 seconds plus up to
// 9 seconds of jitter.
func Backoff(i int) time.Duration {
	wait := math.Pow(float64(i), 2) + float64(RandInt()%10)
	return time.Duration(wait) * time.Second
}

func RandInt() int {
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return int(seed.Int64())
}
