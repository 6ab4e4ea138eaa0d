// Package batch splits large write sets into fixed-size chunks so bulk
// imports (e.g. restoring a backup of a collection) do not exceed backend
// payload limits. Processing is sequential and stops at the first failure,
// matching the no-partial-patch rule upstream: the facade only patches its
// cache with the chunks that were confirmed.
package batch

import (
	"context"
	"errors"
	"fmt"
)

// Chunk size bounds.
const (
	DefaultSize = 100
	MinSize     = 1
	MaxSize     = 1000
)

// Common errors.
var (
	ErrInvalidSize = fmt.Errorf("chunk size must be between %d and %d", MinSize, MaxSize)
	ErrNilCallback = errors.New("chunk callback cannot be nil")
	ErrEmptyItems  = errors.New("items slice cannot be empty")
)

// Callback processes one chunk. index is 0-based.
type Callback[T any] func(ctx context.Context, chunk []T, index int) error

// Progress reports completion after each chunk.
type Progress struct {
	Processed int
	Total     int
	Chunks    int
}

// Processor splits item slices into chunks of a fixed size.
type Processor[T any] struct {
	size       int
	onProgress func(Progress)
}

// New creates a processor with the given chunk size.
func New[T any](size int) (*Processor[T], error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	return &Processor[T]{size: size}, nil
}

// NewWithDefaults creates a processor with DefaultSize chunks.
func NewWithDefaults[T any]() *Processor[T] {
	return &Processor[T]{size: DefaultSize}
}

// WithProgress sets a callback invoked after each completed chunk.
func (p *Processor[T]) WithProgress(fn func(Progress)) *Processor[T] {
	p.onProgress = fn
	return p
}

// Size returns the configured chunk size.
func (p *Processor[T]) Size() int {
	return p.size
}

// Process runs callback over items chunk by chunk, stopping at the first
// error. Chunks completed before a failure stay applied; the error reports
// which chunk failed.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback Callback[T]) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	if callback == nil {
		return ErrNilCallback
	}

	total := len(items)
	chunks := (total + p.size - 1) / p.size
	processed := 0

	for index := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := index * p.size
		end := min(start+p.size, total)

		if err := callback(ctx, items[start:end], index); err != nil {
			return fmt.Errorf("chunk %d of %d failed: %w", index+1, chunks, err)
		}
		processed += end - start
		if p.onProgress != nil {
			p.onProgress(Progress{Processed: processed, Total: total, Chunks: chunks})
		}
	}
	return nil
}
