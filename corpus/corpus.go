// Package corpus reads sentence-aligned parallel text and encodes it to word ids.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/happyhackingspace/cswa/dictionary"
	"github.com/happyhackingspace/cswa/internal/fileio"
	"github.com/happyhackingspace/cswa/internal/textutil"
)

// ErrSentenceCountMismatch is returned when source and target corpora differ in length.
var ErrSentenceCountMismatch = errors.New("corpus: source and target sentence counts differ")

// Options controls how text is turned into sentences.
type Options struct {
	// NullWord prepends the null token to every sentence.
	NullWord bool
	// Lowercase folds every token to lower case.
	Lowercase bool
}

// Text is a tokenized corpus, one sentence per input line.
// Document markers are dropped while reading; empty lines are kept as empty
// sentences so that line numbers stay aligned across languages.
type Text struct {
	Sentences [][]string
}

// ReadFile reads a corpus from a plain or gzip-compressed file.
func ReadFile(path string, opts Options) (*Text, error) {
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	defer func() { _ = rc.Close() }()

	text, err := Read(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	slog.Debug("Corpus loaded", "path", path, "sentences", len(text.Sentences))
	return text, nil
}

// Read reads a corpus from r.
func Read(r io.Reader, opts Options) (*Text, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	text := &Text{}
	for scanner.Scan() {
		var sent []string
		if opts.NullWord {
			sent = append(sent, dictionary.Null)
		}
		for _, tok := range textutil.Fields(scanner.Text()) {
			if dictionary.IsSentinel(tok) {
				continue
			}
			if opts.Lowercase {
				tok = textutil.Normalize(tok)
			}
			sent = append(sent, tok)
		}
		text.Sentences = append(text.Sentences, sent)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return text, nil
}

// BuildDictionary creates a dictionary holding every word of the given texts
// with its frequency. The returned dictionary has growth disabled.
func BuildDictionary(texts ...*Text) *dictionary.Dictionary {
	d := dictionary.New()
	for _, t := range texts {
		for _, sent := range t.Sentences {
			for _, w := range sent {
				d.IncFreq(d.Encode(w), 1)
			}
		}
	}
	d.SetGrowth(false)
	return d
}

// Encode maps every token to its id in d. Words unknown to a frozen
// dictionary become the OOV id.
func (t *Text) Encode(d *dictionary.Dictionary) *Encoded {
	e := &Encoded{offsets: make([]int, 1, len(t.Sentences)+1)}
	for _, sent := range t.Sentences {
		for _, w := range sent {
			e.tokens = append(e.tokens, d.Encode(w))
		}
		e.offsets = append(e.offsets, len(e.tokens))
	}
	return e
}

// Encoded is a corpus of word ids stored as one flat token slice plus
// per-sentence offsets.
type Encoded struct {
	tokens  []int
	offsets []int
}

// NewEncoded builds an encoded corpus directly from id sequences.
func NewEncoded(sentences [][]int) *Encoded {
	e := &Encoded{offsets: make([]int, 1, len(sentences)+1)}
	for _, sent := range sentences {
		e.tokens = append(e.tokens, sent...)
		e.offsets = append(e.offsets, len(e.tokens))
	}
	return e
}

// NumSentences returns the number of sentences.
func (e *Encoded) NumSentences() int {
	return len(e.offsets) - 1
}

// SentenceLength returns the number of tokens of sentence s.
func (e *Encoded) SentenceLength(s int) int {
	return e.offsets[s+1] - e.offsets[s]
}

// TokenAt returns the id at position pos of sentence s.
func (e *Encoded) TokenAt(s, pos int) int {
	return e.tokens[e.offsets[s]+pos]
}

// Sentence returns the ids of sentence s. The slice aliases internal storage.
func (e *Encoded) Sentence(s int) []int {
	return e.tokens[e.offsets[s]:e.offsets[s+1]]
}

// NumTokens returns the total number of tokens.
func (e *Encoded) NumTokens() int {
	return len(e.tokens)
}

// Pair is a sentence-aligned source/target corpus.
type Pair struct {
	Source *Encoded
	Target *Encoded
}

// NewPair validates that both sides have the same number of sentences.
func NewPair(src, trg *Encoded) (Pair, error) {
	if src.NumSentences() != trg.NumSentences() {
		return Pair{}, fmt.Errorf("%w: %d vs %d", ErrSentenceCountMismatch, src.NumSentences(), trg.NumSentences())
	}
	return Pair{Source: src, Target: trg}, nil
}

// NumSentences returns the number of sentence pairs.
func (p Pair) NumSentences() int {
	return p.Source.NumSentences()
}
