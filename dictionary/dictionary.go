// Package dictionary maps words to dense integer ids and tracks their frequencies.
package dictionary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reserved tokens.
const (
	OOV  = "<unk>"
	BoD  = "<d>"
	EoD  = "</d>"
	Null = "<null>"
)

// ErrBadFormat is returned when a serialized dictionary cannot be parsed.
var ErrBadFormat = errors.New("dictionary: malformed dictionary block")

// Dictionary is an append-only word table. Ids are assigned in insertion order.
// New words are only added while growth is enabled; otherwise unknown words
// encode to the OOV id.
type Dictionary struct {
	toID   map[string]int
	toStr  []string
	freq   []int64
	growth bool
}

// New creates an empty dictionary that accepts new words and already knows OOV.
func New() *Dictionary {
	d := &Dictionary{
		toID:   make(map[string]int),
		growth: true,
	}
	d.add(OOV)
	return d
}

func (d *Dictionary) add(w string) int {
	id := len(d.toStr)
	d.toID[w] = id
	d.toStr = append(d.toStr, w)
	d.freq = append(d.freq, 0)
	return id
}

// SetGrowth enables or disables the addition of new words.
func (d *Dictionary) SetGrowth(on bool) {
	d.growth = on
}

// Growth reports whether Encode may add words.
func (d *Dictionary) Growth() bool {
	return d.growth
}

// Encode returns the id of w, adding it when growth is enabled.
// Unknown words encode to the OOV id when growth is disabled.
func (d *Dictionary) Encode(w string) int {
	if id, ok := d.toID[w]; ok {
		return id
	}
	if !d.growth {
		return d.OOVCode()
	}
	return d.add(w)
}

// Lookup returns the id of w without ever adding it.
func (d *Dictionary) Lookup(w string) (int, bool) {
	id, ok := d.toID[w]
	return id, ok
}

// Decode returns the word for id, or the empty string if out of range.
func (d *Dictionary) Decode(id int) string {
	if id < 0 || id >= len(d.toStr) {
		return ""
	}
	return d.toStr[id]
}

// Size returns the number of words.
func (d *Dictionary) Size() int {
	return len(d.toStr)
}

// OOVCode returns the id of the OOV token.
func (d *Dictionary) OOVCode() int {
	return d.toID[OOV]
}

// Freq returns the frequency of id.
func (d *Dictionary) Freq(id int) int64 {
	if id < 0 || id >= len(d.freq) {
		return 0
	}
	return d.freq[id]
}

// IncFreq adds n to the frequency of id.
func (d *Dictionary) IncFreq(id int, n int64) {
	if id >= 0 && id < len(d.freq) {
		d.freq[id] += n
	}
}

// IsSentinel reports whether w is one of the reserved document markers.
func IsSentinel(w string) bool {
	return w == BoD || w == EoD
}

// Save writes the dictionary as a header line followed by one "word\tfreq" line per id.
func (d *Dictionary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "dictionary %d\n", len(d.toStr)); err != nil {
		return err
	}
	for id, word := range d.toStr {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", word, d.freq[id]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a dictionary written by Save. The reader is consumed only up to
// the end of the dictionary block, so binary data may follow. The loaded
// dictionary has growth disabled and contains exactly the persisted words.
func Load(r *bufio.Reader) (*Dictionary, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != "dictionary" {
		return nil, fmt.Errorf("%w: header %q", ErrBadFormat, strings.TrimSpace(header))
	}
	size, err := strconv.Atoi(fields[1])
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: size %q", ErrBadFormat, fields[1])
	}

	d := &Dictionary{
		toID:  make(map[string]int, size),
		toStr: make([]string, 0, size),
		freq:  make([]int64, 0, size),
	}
	for i := 0; i < size; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadFormat, i, err)
		}
		word, count, ok := strings.Cut(strings.TrimRight(line, "\n"), "\t")
		if !ok || word == "" {
			return nil, fmt.Errorf("%w: entry %d: %q", ErrBadFormat, i, line)
		}
		f, err := strconv.ParseInt(count, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadFormat, i, err)
		}
		if _, dup := d.toID[word]; dup {
			return nil, fmt.Errorf("%w: duplicate word %q", ErrBadFormat, word)
		}
		d.add(word)
		d.freq[i] = f
	}
	return d, nil
}
