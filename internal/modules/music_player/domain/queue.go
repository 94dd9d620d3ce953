package domain

import "time"

// Queue holds the requests waiting behind the current one, in insertion order.
// It is not safe for concurrent use; PlaybackInstance serializes access.
type Queue struct {
	requests []*TrackRequest
}

// NewQueue creates a new empty Queue.
func NewQueue() Queue {
	return Queue{
		requests: make([]*TrackRequest, 0),
	}
}

// IsEmpty returns true if the queue has no requests.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	return len(q.requests)
}

func (q *Queue) isValidIndex(index int) bool {
	return 0 <= index && index < q.Len()
}

// Push appends requests to the tail. Nil requests are dropped.
func (q *Queue) Push(requests ...*TrackRequest) {
	for _, r := range requests {
		if r != nil {
			q.requests = append(q.requests, r)
		}
	}
}

// Pop removes and returns the head of the queue, or nil if the queue is empty.
func (q *Queue) Pop() *TrackRequest {
	if q.IsEmpty() {
		return nil
	}
	head := q.requests[0]
	q.requests[0] = nil
	q.requests = q.requests[1:]
	return head
}

// RemoveAt removes and returns the request at the given index.
// Returns nil if the index is out of bounds.
func (q *Queue) RemoveAt(index int) *TrackRequest {
	if !q.isValidIndex(index) {
		return nil
	}

	removed := q.requests[index]
	q.requests = append(q.requests[:index], q.requests[index+1:]...)
	return removed
}

// Shuffle permutes the queue with the given shuffle function and reports
// whether there were at least two requests to permute.
func (q *Queue) Shuffle(shuffle func(n int, swap func(i, j int))) bool {
	if q.Len() < 2 {
		return false
	}
	shuffle(q.Len(), func(i, j int) {
		q.requests[i], q.requests[j] = q.requests[j], q.requests[i]
	})
	return true
}

// List returns a copy of the queued requests.
func (q *Queue) List() []*TrackRequest {
	result := make([]*TrackRequest, q.Len())
	copy(result, q.requests)
	return result
}

// Duration returns the summed duration of all non-stream requests.
func (q *Queue) Duration() time.Duration {
	var total time.Duration
	for _, r := range q.requests {
		if !r.Track().IsStream {
			total += r.Track().Duration
		}
	}
	return total
}

// Clear removes all requests from the queue.
func (q *Queue) Clear() {
	q.requests = make([]*TrackRequest, 0)
}
