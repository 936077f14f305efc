// Package ilist 提供侵入式双向链表，元素自带前后指针，入队出队不分配内存。
package ilist

// Linker 由链表元素实现，通常通过嵌入 Entry 获得
type Linker[T any] interface {
	Next() T
	Prev() T
	SetNext(T)
	SetPrev(T)
}

// Element 是可以放进 List 的元素，一般是指针类型
type Element[T any] interface {
	comparable
	Linker[T]
}

// List 侵入式双向链表，零值可以直接使用
type List[T Element[T]] struct {
	head T
	tail T
	len  int
}

func (l *List[T]) Reset() {
	var zero T
	l.head = zero
	l.tail = zero
	l.len = 0
}

func (l *List[T]) Empty() bool {
	var zero T
	return l.head == zero
}

// Len 返回链表中元素的个数
func (l *List[T]) Len() int {
	return l.len
}

func (l *List[T]) Front() T {
	return l.head
}

func (l *List[T]) Back() T {
	return l.tail
}

func (l *List[T]) PushBack(e T) {
	var zero T
	e.SetNext(zero)
	e.SetPrev(l.tail)

	if l.tail != zero {
		l.tail.SetNext(e)
	} else {
		l.head = e
	}
	l.tail = e
	l.len++
}

// PopFront 摘下表头元素，链表为空时返回零值和 false
func (l *List[T]) PopFront() (T, bool) {
	var zero T
	e := l.head
	if e == zero {
		return zero, false
	}
	l.Remove(e)
	return e, true
}

func (l *List[T]) Remove(e T) {
	var zero T
	prev := e.Prev()
	next := e.Next()

	if prev != zero {
		prev.SetNext(next)
	} else {
		l.head = next
	}

	if next != zero {
		next.SetPrev(prev)
	} else {
		l.tail = prev
	}
	e.SetNext(zero)
	e.SetPrev(zero)
	l.len--
}

// Entry 嵌入到元素结构体中提供链表指针
type Entry[T any] struct {
	next T
	prev T
}

func (e *Entry[T]) Next() T {
	return e.next
}

func (e *Entry[T]) Prev() T {
	return e.prev
}

func (e *Entry[T]) SetNext(elem T) {
	e.next = elem
}

func (e *Entry[T]) SetPrev(elem T) {
	e.prev = elem
}
