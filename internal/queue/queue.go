package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"tahfeez/internal/model"
)

// TypeRosterWarm asks a worker to pre-populate lesson rosters.
const TypeRosterWarm = "roster.warm"

// DefaultKey is the redis list holding pending messages.
const DefaultKey = "tahfeez:warm"

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// WarmRequest is the body of a TypeRosterWarm message.
type WarmRequest struct {
	HalaqahID model.ID   `json:"halaqah_id,omitempty"`
	Lessons   []model.ID `json:"lessons"`
}

// NewWarmMessage encodes a roster warm request.
func NewWarmMessage(req WarmRequest) (Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Message{}, errors.Wrap(err, "encode warm request")
	}
	return Message{Type: TypeRosterWarm, Body: body}, nil
}

// DecodeWarm reads the body of a TypeRosterWarm message.
func DecodeWarm(msg Message) (WarmRequest, error) {
	if msg.Type != TypeRosterWarm {
		return WarmRequest{}, errors.Errorf("unexpected message type %q", msg.Type)
	}
	var req WarmRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return WarmRequest{}, errors.Wrap(err, "decode warm request")
	}
	return req, nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing and for
// running the warmer inside the API process.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers. It closes when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return errors.Wrap(q.client.LPush(ctx, q.key, serialize(msg)).Err(), "lpush")
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			select {
			case out <- deserialize(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// serialize stores messages as Type|Body.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
