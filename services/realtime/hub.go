// Package realtimesvc delivers real-time events to websocket clients grouped in rooms,
// optionally across server instances through redis.
package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/realtime"
)

const queueSize = 256

// Hub tracks the connected clients by room and fans events out to them.
// The rooms map is owned by the Run goroutine.
type Hub struct {
	rooms      map[string]map[*Client]bool
	clients    map[*Client]bool
	broadcast  chan realtime.Envelope
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
	metrics    *Metrics
	logger     core.Logger
}

var _ realtime.Emitter = (*Hub)(nil)

func NewHub(metrics *Metrics, logger core.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan realtime.Envelope, queueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     logger,
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			for _, room := range c.rooms {
				if h.rooms[room] == nil {
					h.rooms[room] = make(map[*Client]bool)
				}
				h.rooms[room][c] = true
			}
			h.metrics.Clients.Inc()

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}

		case env := <-h.broadcast:
			h.deliver(env)

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Emit queues evt for the clients of room. It never blocks: the event is discarded when the queue is full.
func (h *Hub) Emit(room string, evt realtime.Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding %s event: %v", evt.Name, err), err)
		return
	}
	h.emit(realtime.Envelope{Room: room, Name: evt.Name, Payload: payload})
}

func (h *Hub) emit(env realtime.Envelope) {
	select {
	case h.broadcast <- env:
	default:
		h.metrics.DroppedEvents.Inc()
		h.logger.Warn(fmt.Sprintf("realtime queue full, %s event to %s dropped", env.Name, env.Room))
	}
}

func (h *Hub) deliver(env realtime.Envelope) {
	members := h.rooms[env.Room]
	if len(members) == 0 {
		return
	}
	msg, err := json.Marshal(env)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding %s envelope: %v", env.Name, err), err)
		return
	}
	for c := range members {
		select {
		case c.send <- msg:
		default:
			// slow consumer
			h.drop(c)
			h.metrics.DroppedClients.Inc()
		}
	}
	h.metrics.Events.WithLabelValues(env.Name).Inc()
}

func (h *Hub) drop(c *Client) {
	for _, room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.Clients.Dec()
}

// join adds c to its rooms. It reports false when the hub is stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients, 0 once the hub is stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
