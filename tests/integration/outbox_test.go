package integration

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgercore/internal/usecase"
	"github.com/iho/ledgercore/tests/testutil"
)

func TestOutboxWrittenWithSettlement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	testDB.TruncateAll(ctx)
	stack := testDB.NewStack()

	sender := stack.FundedAccount(ctx, "USD", decimal.NewFromInt(100))
	receiver := stack.CreateAccount(ctx, "USD", false)

	ok, err := stack.TransferUC.Transfer(ctx, usecase.TransferInput{
		IdempotencyKey:    testutil.Key("ok"),
		SenderAccountID:   sender.ID,
		ReceiverAccountID: receiver.ID,
		Currency:          "USD",
		Amount:            decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	failed, err := stack.TransferUC.Transfer(ctx, usecase.TransferInput{
		IdempotencyKey:    testutil.Key("nsf"),
		SenderAccountID:   sender.ID,
		ReceiverAccountID: receiver.ID,
		Currency:          "USD",
		Amount:            decimal.NewFromInt(400),
	})
	require.Error(t, err)

	events, err := stack.Outbox.GetByAggregate(ctx, domain.AggregateTypeTransaction, ok.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeTransactionSucceeded, events[0].EventType)
	assert.False(t, events[0].Published)

	events, err = stack.Outbox.GetByAggregate(ctx, domain.AggregateTypeTransaction, failed.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeTransactionFailed, events[0].EventType)
	assert.Equal(t, "insufficient_funds", events[0].Payload["failure_reason"])
}

func TestOutboxDrainedToRedisStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	testDB.TruncateAll(ctx)
	stack := testDB.NewStack()

	sender := stack.FundedAccount(ctx, "USD", decimal.NewFromInt(100))
	receiver := stack.CreateAccount(ctx, "USD", false)

	for range 3 {
		_, err := stack.TransferUC.Transfer(ctx, usecase.TransferInput{
			IdempotencyKey:    testutil.Key("drain"),
			SenderAccountID:   sender.ID,
			ReceiverAccountID: receiver.ID,
			Currency:          "USD",
			Amount:            decimal.NewFromInt(10),
		})
		require.NoError(t, err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: stack.Outbox,
		Publisher:  eventpublisher.NewRedisStreamPublisher(client, "ledger.events", 0),
		Logger:     zerolog.Nop(),
		Interval:   50 * time.Millisecond,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- publisher.Start(runCtx) }()

	require.Eventually(t, func() bool {
		pending, err := stack.Outbox.GetUnpublished(ctx, 100)
		return err == nil && len(pending) == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done

	// Three account openings (treasury, sender, receiver), one funding transfer
	// and three transfers.
	n, err := client.XLen(ctx, "ledger.events").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	msgs, err := client.XRange(ctx, "ledger.events", "-", "+").Result()
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeAccountCreated, msgs[0].Values["event_type"])
}
