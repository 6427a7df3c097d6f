package server

import "sync"

// ConnectionRegistry is the bidirectional mapping between authenticated users
// and their active realtime connection. It is the sole source of truth for
// "is this user reachable by direct push": the fan-out engine consults it to
// decide between socket delivery and the email fallback. Only connect,
// disconnect and authentication events may mutate it.
//
// It is an interface so a multi-instance deployment can swap the in-process
// map for a shared store without touching the fan-out logic.
type ConnectionRegistry interface {
	Register(userId int, c *Client)
	Unregister(c *Client)
	ClientFor(userId int) (*Client, bool)
	UserFor(c *Client) (int, bool)
}

type memoryRegistry struct {
	mu       sync.RWMutex
	byUser   map[int]*Client
	byClient map[*Client]int
}

func NewMemoryRegistry() ConnectionRegistry {
	return &memoryRegistry{
		byUser:   make(map[int]*Client),
		byClient: make(map[*Client]int),
	}
}

// Register maps userId to c, last-connect-wins: any previous connection for
// the user loses its reverse mapping so it can no longer be found stale.
func (r *memoryRegistry) Register(userId int, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[userId]; ok {
		delete(r.byClient, prev)
	}
	r.byUser[userId] = c
	r.byClient[c] = userId
}

// Unregister removes both directions for c. When c has already been
// overwritten by a newer connection for the same user, this is a no-op, so a
// slow disconnect cannot clobber the newer mapping.
func (r *memoryRegistry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId, ok := r.byClient[c]
	if !ok {
		return
	}

	delete(r.byClient, c)
	if r.byUser[userId] == c {
		delete(r.byUser, userId)
	}
}

func (r *memoryRegistry) ClientFor(userId int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[userId]
	return c, ok
}

func (r *memoryRegistry) UserFor(c *Client) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userId, ok := r.byClient[c]
	return userId, ok
}
