package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/app"
	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/history"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *fakeSender) TrySend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSender) Close() {}

// byEvent decodes every delivered frame and keeps those with the given
// envelope event.
func (s *fakeSender) byEvent(t *testing.T, event string) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, f := range s.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		if m["event"] == event {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []history.Session
}

func (r *fakeRecorder) Record(_ context.Context, s history.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *fakeRecorder) Close() error { return nil }

func (r *fakeRecorder) recorded() []history.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

type harness struct {
	h       *app.Handler
	conns   *core.ConnRegistry
	rooms   *core.RoomRegistry
	rec     *fakeRecorder
	senders map[domain.ConnID]*fakeSender
}

func newHarness(t *testing.T, limiter *app.JoinLimiter) *harness {
	t.Helper()
	conns := core.NewConnRegistry()
	bcast := app.NewBroadcaster(conns)
	rooms := core.NewRoomRegistry(bcast)
	rec := &fakeRecorder{}
	h := app.NewHandler(conns, rooms, app.NewRelay(conns), bcast, rec, limiter)
	return &harness{h: h, conns: conns, rooms: rooms, rec: rec, senders: map[domain.ConnID]*fakeSender{}}
}

func (hs *harness) connect(id domain.ConnID) *fakeSender {
	s := &fakeSender{}
	hs.senders[id] = s
	hs.conns.Bind(id, s, nil)
	return s
}

func (hs *harness) send(id domain.ConnID, frame string) {
	hs.h.HandleEvent(id, []byte(frame))
}

func TestLobbyScenario(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")
	b := hs.connect("B")

	// A joins the empty room and becomes host.
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	joined := a.byEvent(t, "joined")
	require.Len(t, joined, 1)
	assert.Equal(t, true, joined[0]["isHost"])

	// B joins and waits in the lobby; A is prompted.
	hs.send("B", `{"event":"join-request","room":"r1","username":"bob"}`)
	require.Len(t, b.byEvent(t, "waiting-approval"), 1)
	pending := a.byEvent(t, "join-pending")
	require.Len(t, pending, 1)
	assert.Equal(t, "B", pending[0]["userId"])
	assert.Equal(t, "bob", pending[0]["username"])

	// A approves B; B is admitted with the full member list.
	hs.send("A", `{"event":"approve-join","room":"r1","userId":"B"}`)
	approved := b.byEvent(t, "approved")
	require.Len(t, approved, 1)
	members := approved[0]["members"].([]any)
	require.Len(t, members, 2)

	// A disconnects: B is promoted and sees the departure.
	hs.h.OnDisconnect("A")
	require.Len(t, b.byEvent(t, "promoted-host"), 1)
	left := b.byEvent(t, "user-left")
	require.Len(t, left, 1)
	assert.Equal(t, "A", left[0]["id"])

	snaps := b.byEvent(t, "members")
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]["members"].([]any)
	require.Len(t, last, 1)
	assert.Equal(t, "B", last[0].(map[string]any)["id"])
}

func TestRelayOpaqueRoundTrip(t *testing.T) {
	hs := newHarness(t, nil)
	x := hs.connect("X")
	hs.connect("Y")

	payload := `{"sdp":"v=0 o=caller","custom":[1,2,3]}`
	hs.send("Y", `{"event":"signal","to":"X","type":"offer","data":`+payload+`}`)

	sigs := x.byEvent(t, "signal")
	require.Len(t, sigs, 1)
	assert.Equal(t, "Y", sigs[0]["from"])
	assert.Equal(t, "offer", sigs[0]["type"])

	var out struct {
		Data json.RawMessage `json:"data"`
	}
	x.mu.Lock()
	require.NoError(t, json.Unmarshal(x.frames[0], &out))
	x.mu.Unlock()
	assert.Equal(t, payload, string(out.Data), "payload must pass through byte-for-byte")
}

func TestRelayToAbsentTargetIsSilentlyDropped(t *testing.T) {
	hs := newHarness(t, nil)
	y := hs.connect("Y")

	hs.send("Y", `{"event":"signal","to":"nobody","type":"offer","data":{}}`)

	assert.Equal(t, 0, y.count(), "sender gets no error event")
}

func TestSignalWithoutTargetDropped(t *testing.T) {
	hs := newHarness(t, nil)
	y := hs.connect("Y")

	hs.send("Y", `{"event":"signal","type":"offer","data":{}}`)
	hs.send("Y", `{"event":"signal","to":"","type":"offer","data":{}}`)

	assert.Equal(t, 0, y.count())
}

func TestJoinRequestWithoutRoomDropped(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")

	hs.send("A", `{"event":"join-request","username":"alice"}`)

	assert.Equal(t, 0, a.count())
	assert.Empty(t, hs.rooms.List())
}

func TestMalformedJSONDropped(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")

	hs.send("A", `{"event":`)
	hs.send("A", `{"event":"no-such-event"}`)

	assert.Equal(t, 0, a.count())
}

func TestGetMembersAfterTeardownReturnsEmpty(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")

	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	hs.send("A", `{"event":"leave"}`)

	_, ok := hs.rooms.Get("r1")
	assert.False(t, ok, "room deleted once empty")

	hs.send("A", `{"event":"get-members","room":"r1"}`)
	got := a.byEvent(t, "members")
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Empty(t, last["members"])
}

func TestDisconnectCleansRegistryAndRoom(t *testing.T) {
	hs := newHarness(t, nil)
	hs.connect("A")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)

	hs.h.OnDisconnect("A")

	_, ok := hs.rooms.Get("r1")
	assert.False(t, ok)
	assert.Equal(t, 0, hs.conns.Len())
}

func TestMediaUpdateBroadcastsBadges(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)

	hs.send("A", `{"event":"media-update","room":"r1","mic":true}`)

	snaps := a.byEvent(t, "members")
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]["members"].([]any)
	require.Len(t, last, 1)
	me := last[0].(map[string]any)
	assert.Equal(t, true, me["micOn"])
	assert.Equal(t, false, me["camOn"])
}

func TestScreenShareEventsReachRoom(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)

	hs.send("A", `{"event":"screen-share-started","room":"r1","sharingId":"s-1"}`)
	started := a.byEvent(t, "screen-share-started")
	require.Len(t, started, 1)
	assert.Equal(t, "s-1", started[0]["sharingId"])

	hs.send("A", `{"event":"screen-share-stopped","room":"r1"}`)
	require.Len(t, a.byEvent(t, "screen-share-stopped"), 1)
}

func TestRaiseHandReachesHostAndRoom(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")
	b := hs.connect("B")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	hs.send("B", `{"event":"join-request","room":"r1","username":"bob"}`)
	hs.send("A", `{"event":"approve-join","room":"r1","userId":"B"}`)

	hs.send("B", `{"event":"raise-hand","room":"r1","raised":true}`)

	assert.Len(t, a.byEvent(t, "raise-hand"), 2, "host copy plus room broadcast")
	assert.Len(t, b.byEvent(t, "raise-hand"), 1)
}

func TestRejectRemovesPendingAndClearsAssociation(t *testing.T) {
	hs := newHarness(t, nil)
	hs.connect("A")
	b := hs.connect("B")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	hs.send("B", `{"event":"join-request","room":"r1","username":"bob"}`)

	hs.send("A", `{"event":"reject-join","room":"r1","userId":"B"}`)

	require.Len(t, b.byEvent(t, "rejected"), 1)
	_, ok := hs.conns.RoomOf("B")
	assert.False(t, ok, "rejected connection no longer maps to the room")

	// A rejected connection may ask again.
	hs.send("B", `{"event":"join-request","room":"r1","username":"bob"}`)
	assert.Len(t, b.byEvent(t, "waiting-approval"), 2)
}

// hookSender observes each frame at delivery time, before recording it.
type hookSender struct {
	fakeSender
	onFrame func([]byte)
}

func (s *hookSender) TrySend(data []byte) error {
	if s.onFrame != nil {
		s.onFrame(data)
	}
	return s.fakeSender.TrySend(data)
}

func TestJoinAssociatesConnectionBeforeAdmission(t *testing.T) {
	hs := newHarness(t, nil)

	// By the time any admission event is delivered, the reverse index must
	// already map the connection to the room. Otherwise a host reject-join
	// landing right after admission has its cleanup overwritten by the
	// still-running join handler.
	s := &hookSender{}
	var observed []string
	s.onFrame = func(data []byte) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["event"] == "joined" {
			roomID, ok := hs.conns.RoomOf("A")
			require.True(t, ok)
			observed = append(observed, string(roomID))
		}
	}
	hs.conns.Bind("A", s, nil)

	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	assert.Equal(t, []string{"r1"}, observed)
}

func TestJoinRateLimited(t *testing.T) {
	hs := newHarness(t, app.NewJoinLimiter(1, time.Minute))
	a := hs.connect("A")

	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	require.Len(t, a.byEvent(t, "joined"), 1)

	hs.send("A", `{"event":"join-request","room":"r2","username":"alice"}`)
	_, ok := hs.rooms.Get("r2")
	assert.False(t, ok, "second join inside the window is dropped")
}

func TestSwitchingRoomsLeavesTheOldOne(t *testing.T) {
	hs := newHarness(t, nil)
	hs.connect("A")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	hs.send("A", `{"event":"join-request","room":"r2","username":"alice"}`)

	_, ok := hs.rooms.Get("r1")
	assert.False(t, ok, "old room emptied and deleted")
	r2, ok := hs.rooms.Get("r2")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("A"), r2.Host())

	roomID, ok := hs.conns.RoomOf("A")
	require.True(t, ok)
	assert.Equal(t, "r2", string(roomID))
}

func TestHistoryRecordedOnTeardown(t *testing.T) {
	hs := newHarness(t, nil)
	hs.connect("A")
	hs.send("A", `{"event":"join-request","room":"r1","username":"alice"}`)
	hs.send("A", `{"event":"leave"}`)

	require.Eventually(t, func() bool {
		return len(hs.rec.recorded()) == 1
	}, time.Second, 10*time.Millisecond)

	s := hs.rec.recorded()[0]
	assert.Equal(t, "r1", s.RoomID)
	assert.Equal(t, []string{"alice"}, s.Participants)
	assert.False(t, s.EndedAt.Before(s.StartedAt))
}

func TestPing(t *testing.T) {
	hs := newHarness(t, nil)
	a := hs.connect("A")
	hs.send("A", `{"event":"ping"}`)
	require.Len(t, a.byEvent(t, "pong"), 1)
}
