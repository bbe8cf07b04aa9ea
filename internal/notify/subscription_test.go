package notify

import (
	"context"
	"testing"
	"time"

	"obras/internal/core"
	"obras/internal/store/memory"
)

// chanConsumer feeds change messages from a channel, standing in for the
// AMQP consumer.
type chanConsumer struct {
	msgs chan *ChangeMessage
}

func (c *chanConsumer) ConsumeChanges(ctx context.Context, handler func(*ChangeMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.msgs:
			if !ok {
				return nil
			}
			if err := handler(msg); err != nil {
				return err
			}
		}
	}
}

func TestSubscribeDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	projectID, err := st.AddProject(ctx, core.Project{Name: "Casa Verde"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	if _, err := st.AddExpense(ctx, core.Expense{
		ProjectID:   projectID,
		Date:        core.NewDate(2025, 3, 1),
		Category:    core.CategoryMaterial,
		Description: "cement",
		Amount:      core.Money{Cents: 1000},
		Payment:     core.PaymentCash,
	}); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	consumer := &chanConsumer{msgs: make(chan *ChangeMessage, 4)}
	snaps := make(chan Snapshot, 4)

	sub := Subscribe(ctx, consumer, st, projectID,
		func(s Snapshot) { snaps <- s },
		func(err error) { t.Errorf("unexpected subscription error: %v", err) })
	defer sub.Cancel()

	consumer.msgs <- NewChangeMessage(CollectionExpenses, projectID)

	select {
	case snap := <-snaps:
		if snap.Collection != CollectionExpenses {
			t.Fatalf("unexpected collection: %s", snap.Collection)
		}
		if len(snap.Expenses) != 1 || snap.Expenses[0].Description != "cement" {
			t.Fatalf("expected full expense snapshot, got %+v", snap.Expenses)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSubscribeSkipsOtherProjects(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	consumer := &chanConsumer{msgs: make(chan *ChangeMessage, 4)}
	snaps := make(chan Snapshot, 4)

	sub := Subscribe(ctx, consumer, st, "mine",
		func(s Snapshot) { snaps <- s },
		nil)
	defer sub.Cancel()

	consumer.msgs <- NewChangeMessage(CollectionExpenses, "someone-else")
	consumer.msgs <- NewChangeMessage(CollectionExpenses, "mine")

	select {
	case snap := <-snaps:
		if snap.ProjectID != "mine" {
			t.Fatalf("snapshot for foreign project delivered: %s", snap.ProjectID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSubscribeDropsUnknownCollections(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	projectID, err := st.AddProject(ctx, core.Project{Name: "Casa Verde"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}

	consumer := &chanConsumer{msgs: make(chan *ChangeMessage, 4)}
	snaps := make(chan Snapshot, 4)

	sub := Subscribe(ctx, consumer, st, projectID,
		func(s Snapshot) { snaps <- s },
		func(err error) { t.Errorf("unknown collection must be dropped, not surfaced: %v", err) })
	defer sub.Cancel()

	// chanConsumer stops on the first handler error, so the second message
	// only arrives if the unknown one was acknowledged and dropped.
	consumer.msgs <- NewChangeMessage("attachments", projectID)
	consumer.msgs <- NewChangeMessage(CollectionExpenses, projectID)

	select {
	case snap := <-snaps:
		if snap.Collection != CollectionExpenses {
			t.Fatalf("unexpected collection: %s", snap.Collection)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed starved after unknown collection message")
	}
}

func TestSubscriptionCancelReleases(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	consumer := &chanConsumer{msgs: make(chan *ChangeMessage)}

	sub := Subscribe(ctx, consumer, st, "p1", func(Snapshot) {}, nil)

	done := make(chan struct{})
	go func() {
		sub.Cancel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel did not release the subscription")
	}
}
