package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestConsumer() *Consumer {
	return &Consumer{
		recent:      NewRecentWins(2),
		logger:      zerolog.Nop(),
		subscribers: make(map[string][]*Subscription),
	}
}

func spinMessage(t *testing.T, network, player string, tier uint8) []byte {
	t.Helper()
	data, err := json.Marshal(AuditEvent{
		EventID:   "evt",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Player:    player,
		Network:   network,
		Action:    ActionSpin,
		Details: SpinDetails{
			TxHash: "0xabc",
			SpinID: "7",
			Result: 12,
			Payout: "0.01",
			Tier:   tier,
			Source: "event",
		},
		Result: "success",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestDecodeSpinEvent(t *testing.T) {
	event, spin, err := DecodeSpinEvent(spinMessage(t, "base", "0xAbC", 2))
	if err != nil {
		t.Fatalf("DecodeSpinEvent() error = %v", err)
	}
	if event.Network != "base" || event.Action != ActionSpin {
		t.Errorf("unexpected event %+v", event)
	}
	if spin.TxHash != "0xabc" || spin.Result != 12 || spin.Tier != 2 || spin.Payout != "0.01" {
		t.Errorf("unexpected spin details %+v", spin)
	}

	if _, _, err := DecodeSpinEvent([]byte("{not json")); err == nil {
		t.Errorf("expected error for invalid json")
	}
}

func TestHandleMessageBroadcastsWins(t *testing.T) {
	c := newTestConsumer()
	c.SetFilter(NetworkFilter("base"))
	all := c.SubscribeAll()
	mine := c.Subscribe("0xABC")
	theirs := c.Subscribe("0xdef")

	msgs := [][]byte{
		spinMessage(t, "base", "0xabc", 2),
		spinMessage(t, "base", "0xabc", 4),
		spinMessage(t, "base-sepolia", "0xabc", 1),
	}
	for _, m := range msgs {
		if err := c.HandleMessage(m); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}

	select {
	case win := <-all.Channel:
		if win.Player != "0xabc" || win.Spin.Tier != 2 {
			t.Errorf("unexpected win %+v", win)
		}
	default:
		t.Fatalf("wildcard subscriber got nothing")
	}
	if len(mine.Channel) != 1 {
		t.Errorf("player subscriber should get exactly one win, got %d", len(mine.Channel))
	}
	if len(theirs.Channel) != 0 || len(all.Channel) != 0 {
		t.Errorf("unexpected extra deliveries")
	}
	if got := len(c.Recent().Snapshot()); got != 1 {
		t.Errorf("expected 1 recent win, got %d", got)
	}

	c.Unsubscribe(mine)
	if win, ok := <-mine.Channel; !ok || win.Player != "0xabc" {
		t.Errorf("buffered win should survive unsubscribe, got %+v ok=%v", win, ok)
	}
	if _, ok := <-mine.Channel; ok {
		t.Errorf("channel should be closed after unsubscribe")
	}
	if _, ok := c.subscribers["0xabc"]; ok {
		t.Errorf("empty subscriber list should be removed")
	}
}

func TestRecentWinsEvictsOldest(t *testing.T) {
	r := NewRecentWins(2)
	r.Add(WinEvent{EventID: "1"})
	r.Add(WinEvent{EventID: "2"})
	r.Add(WinEvent{EventID: "3"})

	got := r.Snapshot()
	if len(got) != 2 || got[0].EventID != "3" || got[1].EventID != "2" {
		t.Errorf("unexpected snapshot %+v", got)
	}
}
