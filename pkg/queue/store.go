package queue

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// Query filters List results. Zero values match everything
type Query struct {
	Statuses  []Status
	Direction Direction
	Peer      string
	Limit     int
}

func (q Query) matches(m *Message) bool {
	if len(q.Statuses) > 0 {
		var ok bool
		for _, s := range q.Statuses {
			if m.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if q.Direction != "" && m.Direction != q.Direction {
		return false
	}

	if q.Peer != "" && m.Peer != q.Peer {
		return false
	}

	return true
}

// Store is the durable record of queued messages. Storage is assumed
// single-writer; multi-process sharing needs external mutual exclusion
type Store interface {
	Insert(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	Update(ctx context.Context, m *Message) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]*Message, error)
	Count(ctx context.Context, status Status) (int, error)
	Close() error
}
