package kpfs

type linkedListNode[T any] struct {
	value T
	next  *linkedListNode[T]
}

type Stack[T any] struct {
	head *linkedListNode[T]
	size int
}

func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

func (s *Stack[T]) Push(e T) {
	s.head = &linkedListNode[T]{value: e, next: s.head}
	s.size++
}

func (s *Stack[T]) Pop() T {
	if s.size == 0 {
		var zero T
		return zero
	}
	node := s.head
	s.head = node.next
	s.size--
	return node.value
}

func (s *Stack[T]) Size() int {
	return s.size
}

// Pool is an index arena over candidate items. Take removes by swapping the
// last element into the hole, so order is not preserved.
type Pool struct {
	items []int
}

func NewPool(items []int) *Pool {
	return &Pool{items: append([]int(nil), items...)}
}

func (p *Pool) Len() int {
	return len(p.items)
}

func (p *Pool) Take(idx int) int {
	last := len(p.items) - 1
	item := p.items[idx]
	p.items[idx] = p.items[last]
	p.items = p.items[:last]
	return item
}

// Draw removes a uniformly random item. The pool must not be empty.
func (p *Pool) Draw(rng Random) int {
	return p.Take(rng.Intn(len(p.items)))
}
