package broker

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/BioHazard786/beamshare/internal/clock"
	"github.com/BioHazard786/beamshare/internal/signaling"
)

const (
	MaxMembers             = 2
	DefaultMaxCodeAttempts = 64
)

// RoomInfo is the public view of one room. Timestamps are Unix milliseconds.
type RoomInfo struct {
	RoomID       string `json:"roomId"`
	MemberCount  int    `json:"memberCount"`
	MaxMembers   int    `json:"maxMembers"`
	Available    bool   `json:"available"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
}

type RoomSnapshot struct {
	RoomID      string   `json:"roomId"`
	MemberCount int      `json:"memberCount"`
	Members     []string `json:"members"`
}

type member struct {
	id   string
	role string
}

type room struct {
	id           string
	members      []member
	createdAt    time.Time
	lastActivity time.Time
}

func (r *room) indexOf(clientID string) int {
	for i, m := range r.members {
		if m.id == clientID {
			return i
		}
	}
	return -1
}

type RoomOptions struct {
	Clock           clock.Clock
	Generate        CodeGenerator
	MaxCodeAttempts int
}

// RoomRegistry owns room lifecycle and membership. Every operation runs
// under one mutex.
type RoomRegistry struct {
	mu          sync.Mutex
	rooms       map[string]*room
	clock       clock.Clock
	generate    CodeGenerator
	maxAttempts int
}

func NewRoomRegistry(opts RoomOptions) *RoomRegistry {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Generate == nil {
		opts.Generate = DigitCode
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	return &RoomRegistry{
		rooms:       make(map[string]*room),
		clock:       opts.Clock,
		generate:    opts.Generate,
		maxAttempts: opts.MaxCodeAttempts,
	}
}

// Create registers an empty room under a fresh code.
func (r *RoomRegistry) Create() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.maxAttempts; i++ {
		id, err := r.generate()
		if err != nil {
			return "", newFault("create", errors.Join(ErrCodeSpaceExhausted, err))
		}
		if _, taken := r.rooms[id]; taken {
			continue
		}
		now := r.clock.Now()
		r.rooms[id] = &room{id: id, createdAt: now, lastActivity: now}
		return id, nil
	}
	return "", newFault("create", ErrCodeSpaceExhausted)
}

// Join adds clientID to the room. The first member is the sender and the
// second the receiver. Joining again returns the existing role.
func (r *RoomRegistry) Join(roomID, clientID string) (string, int, error) {
	if roomID == "" {
		return "", 0, newFault("join", ErrRoomIDRequired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return "", 0, newFault("join", ErrRoomNotFound)
	}
	if i := rm.indexOf(clientID); i >= 0 {
		return rm.members[i].role, len(rm.members), nil
	}
	if len(rm.members) >= MaxMembers {
		return "", 0, newFault("join", ErrRoomFull)
	}

	role := signaling.RoleReceiver
	if len(rm.members) == 0 {
		role = signaling.RoleSender
	}
	rm.members = append(rm.members, member{id: clientID, role: role})
	rm.lastActivity = r.clock.Now()
	return role, len(rm.members), nil
}

// Leave removes clientID from the room and deletes the room when it becomes
// empty.
func (r *RoomRegistry) Leave(roomID, clientID string) (remaining int, deleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return 0, false
	}
	if i := rm.indexOf(clientID); i >= 0 {
		rm.members = append(rm.members[:i], rm.members[i+1:]...)
		rm.lastActivity = r.clock.Now()
	}
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		return 0, true
	}
	return len(rm.members), false
}

func (r *RoomRegistry) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return memberIDs(rm)
}

// Check reports whether a join would currently succeed, without joining.
func (r *RoomRegistry) Check(roomID string) (int, error) {
	if roomID == "" {
		return 0, newFault("check", ErrRoomIDRequired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return 0, newFault("check", ErrRoomNotFound)
	}
	if len(rm.members) >= MaxMembers {
		return len(rm.members), newFault("check", ErrRoomFull)
	}
	rm.lastActivity = r.clock.Now()
	return len(rm.members), nil
}

func (r *RoomRegistry) Info(roomID string) (RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return RoomInfo{}, newFault("info", ErrRoomNotFound)
	}
	return RoomInfo{
		RoomID:       rm.id,
		MemberCount:  len(rm.members),
		MaxMembers:   MaxMembers,
		Available:    len(rm.members) < MaxMembers,
		CreatedAt:    rm.createdAt.UnixMilli(),
		LastActivity: rm.lastActivity.UnixMilli(),
	}, nil
}

// Snapshot lists every room ordered by id.
func (r *RoomRegistry) Snapshot() []RoomSnapshot {
	r.mu.Lock()
	out := make([]RoomSnapshot, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, RoomSnapshot{
			RoomID:      rm.id,
			MemberCount: len(rm.members),
			Members:     memberIDs(rm),
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// ReapIdle deletes empty rooms whose last activity is older than threshold.
func (r *RoomRegistry) ReapIdle(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string
	for id, rm := range r.rooms {
		if len(rm.members) == 0 && now.Sub(rm.lastActivity) > threshold {
			delete(r.rooms, id)
			reaped = append(reaped, id)
		}
	}
	sort.Strings(reaped)
	return reaped
}

func (r *RoomRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func memberIDs(rm *room) []string {
	ids := make([]string, len(rm.members))
	for i, m := range rm.members {
		ids[i] = m.id
	}
	return ids
}
