package pipeline

import (
	"context"
	"testing"

	"idpmon/internal/correlate"
	"idpmon/pkg/models"
)

type fakeSource struct {
	processed map[string]bool
	markErr   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{processed: map[string]bool{}}
}

func (s *fakeSource) Dequeue(ctx context.Context) (*models.ChangeNotification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSource) MarkProcessed(ctx context.Context, resourceID string) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	if s.processed[resourceID] {
		return false, nil
	}
	s.processed[resourceID] = true
	return true, nil
}

type countingEngine struct {
	processed []string
}

func (e *countingEngine) Process(ctx context.Context, n models.ChangeNotification) correlate.Outcome {
	e.processed = append(e.processed, n.ResourceData.ID)
	return correlate.Outcome{Kind: correlate.OutcomeTicketCreated, TicketID: 1}
}

func TestHandleSkipsDuplicateResource(t *testing.T) {
	engine := &countingEngine{}
	pipe := New(newFakeSource(), engine, "DefaultClientState", 1)

	n := models.ChangeNotification{
		ClientState:  "DefaultClientState",
		ResourceData: models.ResourceData{ID: "alert-1"},
	}
	pipe.handle(context.Background(), n)
	pipe.handle(context.Background(), n)

	if len(engine.processed) != 1 {
		t.Fatalf("expected the duplicate to be skipped, processed %d times", len(engine.processed))
	}
}

func TestHandleSkipsMismatchedClientState(t *testing.T) {
	engine := &countingEngine{}
	pipe := New(newFakeSource(), engine, "DefaultClientState", 1)

	pipe.handle(context.Background(), models.ChangeNotification{
		ClientState:  "someone-else",
		ResourceData: models.ResourceData{ID: "alert-1"},
	})

	if len(engine.processed) != 0 {
		t.Fatalf("mismatched client state must not be processed")
	}
}

func TestHandleDropsNotificationWithoutResourceID(t *testing.T) {
	engine := &countingEngine{}
	pipe := New(newFakeSource(), engine, "DefaultClientState", 1)

	pipe.handle(context.Background(), models.ChangeNotification{ClientState: "DefaultClientState"})

	if len(engine.processed) != 0 {
		t.Fatalf("a notification without a resource id must be dropped")
	}
}

func TestHandleProcessesWhenMarkerUnavailable(t *testing.T) {
	source := newFakeSource()
	source.markErr = context.DeadlineExceeded
	engine := &countingEngine{}
	pipe := New(source, engine, "DefaultClientState", 1)

	pipe.handle(context.Background(), models.ChangeNotification{
		ClientState:  "DefaultClientState",
		ResourceData: models.ResourceData{ID: "alert-1"},
	})

	if len(engine.processed) != 1 {
		t.Fatalf("a failed idempotency check must not drop the notification")
	}
}
