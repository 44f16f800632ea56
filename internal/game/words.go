package game

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// WordSource supplies the secret word for a round. Word-list content and
// rotation policy live behind this interface; the default source is a static
// list with uniform random draws.
type WordSource interface {
	Draw() string
}

// WordSourceFunc adapts a function to the WordSource interface.
type WordSourceFunc func() string

func (f WordSourceFunc) Draw() string {
	return f()
}

var defaultWords = []string{
	"cat", "dog", "sun", "car", "tree", "fish", "star", "house",
	"apple", "chair", "cloud", "pizza", "robot", "snake", "train",
	"bridge", "camera", "castle", "dragon", "guitar", "island",
	"pirate", "rocket", "wizard", "anchor", "banana", "candle",
	"helmet", "ladder", "mirror", "pencil", "spider", "turtle",
	"volcano", "whistle", "backpack", "elephant", "lightning",
	"mountain", "umbrella", "ice cream", "jellyfish", "telescope",
}

type staticWords struct {
	mu    sync.Mutex
	words []string
	rng   *rand.Rand
}

// NewStaticWords builds a WordSource over the given list, falling back to the
// built-in list when none is given.
func NewStaticWords(seed int64, words ...string) WordSource {
	if len(words) == 0 {
		words = defaultWords
	}
	return &staticWords{
		words: words,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *staticWords) Draw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words[s.rng.Intn(len(s.words))]
}

// LoadWordsFile reads a word list from a CSV file with one word per row;
// extra columns are ignored. Blank and malformed rows are skipped.
func LoadWordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var words []string
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		word := strings.TrimSpace(record[0])
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%s contains no words", path)
	}
	return words, nil
}
