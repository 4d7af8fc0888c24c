package astilibav

// generationQueue buffers items split into generations. A flush seals the
// current generation and starts an empty one, so content pushed before and
// after a discontinuity never mixes.
type generationQueue[T any] struct {
	gs [][]T
}

func newGenerationQueue[T any]() *generationQueue[T] {
	return &generationQueue[T]{gs: [][]T{nil}}
}

func (q *generationQueue[T]) push(vs ...T) {
	q.gs[len(q.gs)-1] = append(q.gs[len(q.gs)-1], vs...)
}

func (q *generationQueue[T]) flush() {
	q.gs = append(q.gs, nil)
}

// count returns the number of generations, including the current one
func (q *generationQueue[T]) count() int {
	return len(q.gs)
}

func (q *generationQueue[T]) frontLen() int {
	return len(q.gs[0])
}

func (q *generationQueue[T]) backLen() int {
	return len(q.gs[len(q.gs)-1])
}

// popFront removes up to n items from the front generation
func (q *generationQueue[T]) popFront(n int) []T {
	if n > len(q.gs[0]) {
		n = len(q.gs[0])
	}
	vs := q.gs[0][:n]
	q.gs[0] = q.gs[0][n:]
	return vs
}

// retire drops the front generation and returns its leftovers. The last
// generation is never dropped, only emptied.
func (q *generationQueue[T]) retire() []T {
	vs := q.gs[0]
	if len(q.gs) > 1 {
		q.gs = q.gs[1:]
	} else {
		q.gs[0] = nil
	}
	return vs
}
