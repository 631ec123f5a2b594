// Package cache holds what the cache backends under pkg/cache share: the
// backend contract, the miss error, the entry naming scheme and the entry
// envelope used by backends that store raw bytes.
package cache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
)

var (
	// ErrMiss is returned by Read when no entry exists for a key.
	ErrMiss = errors.New("cache: no entry for key")
	// ErrBadEntry is returned when stored bytes do not start with a header.
	ErrBadEntry = errors.New("cache: malformed entry")
)

// Backend is a cache that can also be enumerated and purged.
type Backend interface {
	datasets.Cache
	datasets.CacheAdmin
}

// Extension is appended to entry IDs by file-like backends.
const Extension = ".frame"

// maxHeader bounds the header line so a foreign file cannot make ReadHeader
// buffer it whole.
const maxHeader = 64 << 10

// Miss wraps ErrMiss with the key ID.
func Miss(key datasets.CacheKey) error {
	return fmt.Errorf("%w: %s", ErrMiss, key.ID())
}

var nameReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-")

// EntryName returns the file or object name for key.
func EntryName(key datasets.CacheKey) string {
	return SafeName(key.ID()) + Extension
}

// SafeName replaces path separators so a value can be used as one path
// segment.
func SafeName(s string) string {
	return nameReplacer.Replace(s)
}

// Header is stored in front of every entry so purges and listings can match
// on the exact dataset and flag instead of parsing names.
type Header struct {
	ID      string     `json:"id"`
	Dataset string     `json:"dataset"`
	Flag    flags.Flag `json:"flag"`
}

// HeaderOf returns the header written for key.
func HeaderOf(key datasets.CacheKey) Header {
	return Header{ID: key.ID(), Dataset: key.Dataset, Flag: key.Flag}
}

// Matches compares dataset and flag exactly. An empty dataset matches every
// entry and an empty flag matches every flag of the dataset.
func (h Header) Matches(dataset string, flag flags.Flag) bool {
	return (dataset == "" || h.Dataset == dataset) && (flag == "" || h.Flag == flag)
}

// EncodeEntry renders key's header as one JSON line followed by the frame.
func EncodeEntry(key datasets.CacheKey, value *frame.Frame) ([]byte, error) {
	head, err := json.Marshal(HeaderOf(key))
	if err != nil {
		return nil, fmt.Errorf("cache: encode header: %w", err)
	}
	body, err := value.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(head)+1+len(body))
	out = append(out, head...)
	out = append(out, '\n')
	return append(out, body...), nil
}

// DecodeEntry splits bytes written by EncodeEntry.
func DecodeEntry(raw []byte) (Header, *frame.Frame, error) {
	line, body, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok {
		return Header{}, nil, ErrBadEntry
	}
	h, err := parseHeader(line)
	if err != nil {
		return Header{}, nil, err
	}
	f, err := frame.Decode(body)
	if err != nil {
		return h, nil, err
	}
	return h, f, nil
}

// ReadHeader reads only the header line from r.
func ReadHeader(r io.Reader) (Header, error) {
	br := bufio.NewReaderSize(io.LimitReader(r, maxHeader), 4096)
	line, err := br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Header{}, ErrBadEntry
		}
		return Header{}, fmt.Errorf("cache: read header: %w", err)
	}
	return parseHeader(bytes.TrimSuffix(line, []byte{'\n'}))
}

func parseHeader(line []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadEntry, err)
	}
	if h.ID == "" {
		return Header{}, fmt.Errorf("%w: header without id", ErrBadEntry)
	}
	return h, nil
}
