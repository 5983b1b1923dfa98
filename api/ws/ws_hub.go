package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kshivamiitk/classboard/cache"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/service"
)

type classFanout struct {
	classID string
	message []byte
}

// Hub maintains the set of active connections per class and delivers the
// class channel fan-out to them. The first connection into a class opens the
// redis subscription; the last one out closes it. Subscription callbacks only
// forward into FanoutCh, so every map access happens on the Run goroutine.
type Hub struct {
	classCache     cache.ClassCache
	OpenCh         chan *Client
	JoinCh         chan *Client
	CloseCh        chan *Client
	FanoutCh       chan classFanout
	clients        map[*Client]struct{}
	classToClients map[string]map[*Client]struct{}
	classSubCancel map[string]context.CancelFunc
}

func NewHub(classCache cache.ClassCache) *Hub {
	return &Hub{
		classCache:     classCache,
		OpenCh:         make(chan *Client, 256),
		JoinCh:         make(chan *Client, 256),
		CloseCh:        make(chan *Client, 256),
		FanoutCh:       make(chan classFanout, 1024),
		clients:        make(map[*Client]struct{}),
		classToClients: make(map[string]map[*Client]struct{}),
		classSubCancel: make(map[string]context.CancelFunc),
	}
}

const maxConnectionsPerClass = 256

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			h.clients[client] = struct{}{}

		case client := <-h.JoinCh:
			if len(h.classToClients[client.classID]) >= maxConnectionsPerClass {
				log.Printf("Class %s reached max connections (%d)", client.classID, maxConnectionsPerClass)
				close(client.Send)
				continue
			}

			if h.classToClients[client.classID] == nil {
				classID := client.classID
				ctx, cancel := context.WithCancel(context.Background())

				err := h.classCache.Subscribe(ctx, service.ClassChannel(classID), func(messageBytes []byte) {
					h.FanoutCh <- classFanout{classID: classID, message: messageBytes}
				})
				if err != nil {
					log.Printf("Failed to create redis sub for class %s: %v", classID, err)
					cancel()
					continue
				}

				h.classToClients[classID] = make(map[*Client]struct{})
				h.classSubCancel[classID] = cancel
			}
			h.classToClients[client.classID][client] = struct{}{}
			h.broadcastPresence(client.classID)

		case client := <-h.CloseCh:
			delete(h.clients, client)
			if client.classID == "" {
				continue
			}
			delete(h.classToClients[client.classID], client)
			if len(h.classToClients[client.classID]) == 0 {
				if cancel, ok := h.classSubCancel[client.classID]; ok {
					cancel()
					delete(h.classSubCancel, client.classID)
				}
				delete(h.classToClients, client.classID)
				continue
			}
			h.broadcastPresence(client.classID)

		case fanout := <-h.FanoutCh:
			h.routeFanout(fanout.classID, fanout.message)
		}
	}
}

// routeFanout unwraps one published class message and hands the payload to
// every matching connection. A targeted message reaches only connections
// whose identity token matches, covering multiple tabs of the same student.
// Runs on the hub goroutine, which owns the membership maps.
func (h *Hub) routeFanout(classID string, messageBytes []byte) {
	var fanout protocol.Fanout
	if err := json.Unmarshal(messageBytes, &fanout); err != nil {
		log.Printf("Failed to unmarshal class fan-out: %v", err)
		return
	}
	for client := range h.classToClients[classID] {
		if fanout.Target == "" || client.token == fanout.Target {
			client.Send <- fanout.Payload
		}
	}
}

// broadcastPresence pushes the live roster of this instance to every
// connection in the class.
func (h *Hub) broadcastPresence(classID string) {
	participants := make([]models.Participant, 0, len(h.classToClients[classID]))
	for client := range h.classToClients[classID] {
		if client.name == "" {
			continue
		}
		participants = append(participants, models.Participant{
			ID:   client.id,
			Name: client.name,
			Role: client.role,
		})
	}

	payload, err := json.Marshal(protocol.Presence{
		Type:    protocol.KindPresence,
		Clients: participants,
	})
	if err != nil {
		log.Printf("Failed to marshal presence for class %s: %v", classID, err)
		return
	}
	for client := range h.classToClients[classID] {
		client.Send <- payload
	}
}
