package ingestion_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"OutcomeLedger/internal/ingestion"
	"OutcomeLedger/internal/testutil"
)

// ============================================================
// Test: NATS subscriber (requires a running JetStream server)
// ============================================================

func TestNATSSubscriber_DeliversPublishedEvents(t *testing.T) {
	testutil.RequireIntegration(t)

	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL())
	if err != nil {
		t.Skipf("test nats not available: %v (start with: docker compose -f docker-compose.test.yml up -d)", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		t.Fatalf("ensure streams: %v", err)
	}

	rawChan := make(chan ingestion.RawEvent, 16)
	sub := ingestion.NewNATSSubscriber(js, rawChan)
	defer sub.Stop()

	subjects := []ingestion.SubjectConfig{
		{Subject: "ctf.trades.>", EventType: "Trade", ConsumerName: "test-trades", StreamName: "CTF_TRADES"},
	}
	if err := sub.Subscribe(ctx, subjects); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Unique subject per run so leftovers from earlier runs on the same
	// durable consumer cannot satisfy the assertion.
	subject := fmt.Sprintf("ctf.trades.run%d", time.Now().UnixNano())
	payload := []byte(`{"trade_id":"t-1"}`)
	if _, err := js.Publish(ctx, subject, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case raw := <-rawChan:
			raw.AckFunc()
			if raw.Subject != subject {
				continue
			}
			if string(raw.Data) != string(payload) {
				t.Errorf("data = %q, want %q", raw.Data, payload)
			}
			if raw.Timestamp.IsZero() {
				t.Error("raw event timestamp is zero")
			}
			return
		case <-deadline:
			t.Fatal("published event not delivered within 10s")
		}
	}
}
