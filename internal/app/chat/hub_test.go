package chat

import (
	"encoding/json"
	"sync"
	"testing"
)

// The hub's fan-out methods snapshot clients under a read lock and enqueue
// after releasing it, so a delivery can interleave with the same client's
// teardown. These tests pin down that such a delivery is dropped instead of
// hitting a closed send queue.

func TestToConnDeliversFrame(t *testing.T) {
	t.Parallel()

	h := NewHub()
	c := NewClient("c1", "alice", nil, h, nil)
	h.Register(c)

	h.ToConn("c1", EvtUserTyping, TypingEventPayload{Username: "alice", IsTyping: true})

	select {
	case frame := <-c.send:
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		if env.Event != EvtUserTyping {
			t.Fatalf("expected %s, got %s", EvtUserTyping, env.Event)
		}
	default:
		t.Fatal("no frame queued")
	}
}

func TestUnregisterClosesQueueAndDropsLateDeliveries(t *testing.T) {
	t.Parallel()

	h := NewHub()
	c := NewClient("c1", "alice", nil, h, nil)
	h.Register(c)
	h.JoinRoom("c1", "lobby")

	h.Unregister("c1")

	if _, open := <-c.send; open {
		t.Fatal("send queue must be closed after unregister")
	}

	// A broadcaster that snapshotted this client before the unregister still
	// calls enqueue afterwards; the frame must be dropped, not panic.
	c.enqueue(EvtUserTyping, []byte(`{}`))

	// Idempotent teardown.
	h.Unregister("c1")
	c.closeSend()
}

func TestDeliveryRacingTeardown(t *testing.T) {
	t.Parallel()

	h := NewHub()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.ToConn("c1", EvtUserTyping, TypingEventPayload{Username: "alice"})
					h.ToRoom("lobby", EvtUserTyping, TypingEventPayload{Username: "alice"})
					h.ToAll(EvtRoomListUpdated, nil)
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		c := NewClient("c1", "alice", nil, h, nil)
		h.Register(c)
		h.JoinRoom("c1", "lobby")
		drain(c)
		h.Unregister("c1")
	}
	close(stop)
	wg.Wait()
}

// drain empties the send queue so broadcasters keep reaching the select.
func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
