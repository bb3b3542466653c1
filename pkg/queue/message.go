// Package queue implements a durable outbound/inbound message queue with
// bounded capacity, exponential-backoff retry, time-to-live expiry and
// lifecycle statistics.
package queue

import "time"

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Message is one queued delivery attempt. Records are created by enqueue,
// mutated only by the queue's own transition methods and removed by explicit
// delete or retention cleanup
type Message struct {
	ID          string            `msgpack:"i"`
	Direction   Direction         `msgpack:"d"`
	Status      Status            `msgpack:"s"`
	Payload     []byte            `msgpack:"p"`
	Peer        string            `msgpack:"pe"`
	CreatedAt   time.Time         `msgpack:"c"`
	UpdatedAt   time.Time         `msgpack:"u"`
	ExpiresAt   time.Time         `msgpack:"x"`
	SentAt      *time.Time        `msgpack:"st,omitempty"`
	DeliveredAt *time.Time        `msgpack:"dl,omitempty"`
	RetryCount  int               `msgpack:"r"`
	MaxRetries  int               `msgpack:"mr"`
	NextRetryAt time.Time         `msgpack:"n"`
	LastError   string            `msgpack:"le,omitempty"`
	Metadata    map[string]string `msgpack:"m,omitempty"`
}

// Terminal reports whether the record has reached a state from which only
// deletion applies
func (m *Message) Terminal() bool {
	switch m.Status {
	case StatusDelivered, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}
