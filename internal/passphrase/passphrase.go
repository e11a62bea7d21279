// Package passphrase generates account passwords and estimates their strength.
package passphrase

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"unicode"
)

var errInvalidWordCount = errors.New("word count must be positive")

// DefaultWords is the word count used by register --generate.
const DefaultWords = 6

var (
	randSource io.Reader = rand.Reader
	randMux    sync.RWMutex
)

var adjectives = []string{
	"amber", "brave", "calm", "cosy", "deep", "drowsy", "early", "gentle", "hazy", "idle", "late", "lazy",
	"mellow", "misty", "quiet", "restful", "silent", "slow", "soft", "still", "sunny", "tired", "warm", "woolly",
}

var nouns = []string{
	"blanket", "candle", "cloud", "dawn", "dream", "dusk", "feather", "harbor", "hammock", "lantern", "meadow", "moon",
	"nebula", "owl", "pillow", "quilt", "river", "shore", "slumber", "star", "tide", "twilight", "valley", "willow",
}

var (
	wordList []string
	wordOnce sync.Once
)

// SetRandomSource replaces the random source. nil restores crypto/rand.
func SetRandomSource(r io.Reader) {
	randMux.Lock()
	if r == nil {
		randSource = rand.Reader
	} else {
		randSource = r
	}
	randMux.Unlock()
}

// Generate returns wordCount random words joined by spaces.
func Generate(wordCount int) (string, error) {
	if wordCount <= 0 {
		return "", errInvalidWordCount
	}

	words := dictionary()
	randMux.RLock()
	src := randSource
	randMux.RUnlock()

	picked := make([]string, wordCount)
	for i := range picked {
		idx, err := randomIndex(src, len(words))
		if err != nil {
			return "", err
		}
		picked[i] = words[idx]
	}
	return strings.Join(picked, " "), nil
}

// GeneratedBits is the entropy of a Generate result of wordCount words.
func GeneratedBits(wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	return float64(wordCount) * math.Log2(float64(len(dictionary())))
}

func dictionary() []string {
	wordOnce.Do(func() {
		merged := make([]string, 0, len(adjectives)*len(nouns))
		for _, adj := range adjectives {
			for _, noun := range nouns {
				merged = append(merged, adj+"-"+noun)
			}
		}
		wordList = merged
	})
	return wordList
}

// randomIndex draws an unbiased index in [0, max) by rejection sampling.
func randomIndex(r io.Reader, max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidWordCount
	}

	if max <= 256 {
		var buf [1]byte
		usable := 256 - (256 % max)
		for {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return 0, err
			}
			if int(buf[0]) < usable {
				return int(buf[0]) % max, nil
			}
		}
	}

	var buf [2]byte
	usable := 65536 - (65536 % max)
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		val := int(binary.BigEndian.Uint16(buf[:]))
		if val < usable {
			return val % max, nil
		}
	}
}

// Rating buckets an entropy estimate.
type Rating string

const (
	RatingWeak   Rating = "weak"
	RatingFair   Rating = "fair"
	RatingStrong Rating = "strong"
)

// Strength estimates the entropy of password in bits from its length and
// the character classes it draws from.
func Strength(password string) float64 {
	var lower, upper, digit, symbol, other bool
	n := 0
	for _, r := range password {
		n++
		switch {
		case r < unicode.MaxASCII && unicode.IsLower(r):
			lower = true
		case r < unicode.MaxASCII && unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case r < unicode.MaxASCII:
			symbol = true
		default:
			other = true
		}
	}

	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if symbol {
		pool += 33
	}
	if other {
		pool += 100
	}
	if pool == 0 {
		return 0
	}
	return float64(n) * math.Log2(float64(pool))
}

// Rate maps bits to a Rating.
func Rate(bits float64) Rating {
	switch {
	case bits < 40:
		return RatingWeak
	case bits < 70:
		return RatingFair
	default:
		return RatingStrong
	}
}
