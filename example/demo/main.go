// Demo wires the in-memory engine, the repository, and the outbox pump into a
// runnable end-to-end flow: book a purchase order, watch a second booking
// attempt fail, and see the committed event arrive at a logging publisher.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/messagehandler/aggregate-sourcing-go/eventstore"
	"github.com/messagehandler/aggregate-sourcing-go/eventstore/memoryengine"
	"github.com/messagehandler/aggregate-sourcing-go/example/booking"
	"github.com/messagehandler/aggregate-sourcing-go/outbox"
	"github.com/messagehandler/aggregate-sourcing-go/repository"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	store := memoryengine.NewEventStore()

	// Start the outbox pump with a publisher that just logs each event.
	publisher := outbox.PublisherFunc(
		func(_ context.Context, destination string, event eventstore.SequencedEvent) error {
			logger.Info("delivered",
				"destination", destination,
				"position", event.Position,
				"event_type", event.Event.EventType,
				"payload", string(event.Event.PayloadJSON))

			return nil
		},
	)

	pumpConfig, err := outbox.NewConfig("demo", "demo-log", outbox.WithPollInterval(10*time.Millisecond))
	if err != nil {
		log.Fatalf("Failed to build outbox config: %v", err)
	}

	pump, err := outbox.NewPump(store, publisher, outbox.NewMemoryCursorStore(), pumpConfig,
		outbox.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create outbox pump: %v", err)
	}

	if err := pump.Start(ctx); err != nil {
		log.Fatalf("Failed to start outbox pump: %v", err)
	}
	defer pump.Stop()

	bookingID := uuid.New().String()

	// First unit of work: book a purchase order.
	repo := repository.New(store, repository.WithLogger(logger))

	firstBooking := booking.NewBooking(bookingID)
	if err := repo.Get(ctx, firstBooking); err != nil {
		log.Fatalf("Failed to load booking: %v", err)
	}

	result := firstBooking.Book("PO-4711", time.Now(), eventstore.NewEventMetadata("demo-user"))
	logger.Info("first booking decided", "success", result.IsSuccess())

	if _, err := repo.Flush(ctx); err != nil {
		log.Fatalf("Failed to flush: %v", err)
	}

	// Second unit of work: replay the stream and try to book again.
	secondRepo := repository.New(store, repository.WithLogger(logger))

	secondBooking := booking.NewBooking(bookingID)
	if err := secondRepo.GetExisting(ctx, secondBooking); err != nil {
		log.Fatalf("Failed to load existing booking: %v", err)
	}

	result = secondBooking.Book("PO-9999", time.Now(), eventstore.NewEventMetadata("demo-user"))
	logger.Info("second booking decided",
		"failure", result.IsFailure(),
		"reason", result.FailureReason(),
		"kept_reference", secondBooking.Reference())

	// Give the pump a moment to deliver before shutting down.
	time.Sleep(100 * time.Millisecond)
}
