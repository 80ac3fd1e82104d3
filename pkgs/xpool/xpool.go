package xpool

import (
	"sync"
)

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	pool sync.Pool
}

func New[T any](fn func() T) Pool[T] {
	return Pool[T]{
		pool: sync.Pool{New: func() interface{} { return fn() }},
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(x T) {
	p.pool.Put(x)
}

// Buffers hands out byte slices of a fixed length.
type Buffers struct {
	size int
	pool Pool[*[]byte]
}

func NewBuffers(size int) *Buffers {
	return &Buffers{
		size: size,
		pool: New(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
	}
}

func (b *Buffers) Get() *[]byte {
	buff := b.pool.Get()
	*buff = (*buff)[:b.size]
	return buff
}

func (b *Buffers) Put(buff *[]byte) {
	if cap(*buff) < b.size {
		return
	}
	b.pool.Put(buff)
}
