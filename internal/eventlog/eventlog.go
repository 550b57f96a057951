// Package eventlog writes and verifies hash-chained JSONL event logs.
//
// Each line carries integrity{prev, hash} where
//
//	hash = sha256hex(prev + sha256hex(canonical(event)))
//
// and canonical is the compact JSON encoding of the event without its
// integrity field. The first line links to Genesis.
package eventlog

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

// Genesis is the prev value of the first link in a chain.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// Canonical returns the bytes that are hashed for ev.
func Canonical(ev *event.Event) ([]byte, error) {
	cp := *ev
	cp.Integrity = nil
	return json.Marshal(&cp)
}

// Link computes the chain hash of canonical given the previous hash.
func Link(prev string, canonical []byte) string {
	inner := sha256.Sum256(canonical)
	outer := sha256.Sum256([]byte(prev + hex.EncodeToString(inner[:])))
	return hex.EncodeToString(outer[:])
}

// Writer appends validated events to a chain. Safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	prev      string
	validator *event.Validator
}

// NewWriter starts a fresh chain on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, prev: Genesis, validator: event.NewValidator()}
}

// Create truncates path and starts a fresh chain in it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Open appends to path, continuing the chain from its last line.
// A missing file starts a fresh chain.
func Open(path string) (*Writer, error) {
	prev := Genesis
	if f, err := os.Open(path); err == nil {
		res, verr := Verify(f)
		f.Close()
		if verr != nil {
			return nil, fmt.Errorf("open event log %s: %w", path, verr)
		}
		prev = res.Head
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	w.prev = prev
	return w, nil
}

// Write validates ev, links it to the chain and appends it as one line.
// ev.Integrity is set on success.
func (w *Writer) Write(ev *event.Event) error {
	if err := w.validator.Validate(ev); err != nil {
		return err
	}
	canonical, err := Canonical(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hash := Link(w.prev, canonical)
	ev.Integrity = &event.Integrity{Prev: w.prev, Hash: hash}
	line, err := json.Marshal(ev)
	if err != nil {
		ev.Integrity = nil
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := w.w.Write(append(line, '\n')); err != nil {
		ev.Integrity = nil
		return fmt.Errorf("append event: %w", err)
	}
	w.prev = hash
	return nil
}

// Head returns the hash of the last written event.
func (w *Writer) Head() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prev
}

// Close closes the underlying file when the Writer opened it.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// ChainError reports the first line where the chain does not hold.
type ChainError struct {
	Line   int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("integrity chain broken at line %d: %s", e.Line, e.Reason)
}

// Result summarizes a successful verification.
type Result struct {
	Events int
	Head   string
}

// Verify replays the chain in r and returns the first broken link as a
// *ChainError. Blank lines are ignored.
func Verify(r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	res := &Result{Head: Genesis}
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return nil, &ChainError{Line: line, Reason: err.Error()}
		}
		if ev.Integrity == nil {
			return nil, &ChainError{Line: line, Reason: "missing integrity"}
		}
		if ev.Integrity.Prev != res.Head {
			return nil, &ChainError{Line: line, Reason: fmt.Sprintf("prev %q does not match %q", ev.Integrity.Prev, res.Head)}
		}
		canonical, err := Canonical(&ev)
		if err != nil {
			return nil, &ChainError{Line: line, Reason: err.Error()}
		}
		if want := Link(res.Head, canonical); ev.Integrity.Hash != want {
			return nil, &ChainError{Line: line, Reason: "hash mismatch"}
		}
		res.Head = ev.Integrity.Hash
		res.Events++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return res, nil
}

// VerifyFile is Verify on the file at path.
func VerifyFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	defer f.Close()
	return Verify(f)
}
