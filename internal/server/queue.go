package server

import "slices"

// matchQueue is the FIFO of sessions waiting for an opponent.
type matchQueue struct {
	ids []uint64
}

func (q *matchQueue) len() int { return len(q.ids) }

func (q *matchQueue) contains(id uint64) bool {
	return slices.Contains(q.ids, id)
}

// push appends id and returns its 1-based position.
func (q *matchQueue) push(id uint64) int {
	q.ids = append(q.ids, id)
	return len(q.ids)
}

func (q *matchQueue) pushFront(id uint64) {
	q.ids = slices.Insert(q.ids, 0, id)
}

func (q *matchQueue) popPair() (uint64, uint64, bool) {
	if len(q.ids) < 2 {
		return 0, 0, false
	}
	a, b := q.ids[0], q.ids[1]
	q.ids = slices.Delete(q.ids, 0, 2)
	return a, b, true
}

func (q *matchQueue) remove(id uint64) bool {
	i := slices.Index(q.ids, id)
	if i < 0 {
		return false
	}
	q.ids = slices.Delete(q.ids, i, i+1)
	return true
}
