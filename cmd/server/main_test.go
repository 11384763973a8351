package main

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgercore/internal/usecase"
)

func TestTransferPolicy(t *testing.T) {
	cfg := &config.Config{}
	assert.IsType(t, usecase.AllowAll{}, transferPolicy(cfg))

	cfg.FlagThreshold = decimal.NewFromInt(10000)
	policy := transferPolicy(cfg)
	if assert.IsType(t, usecase.ThresholdPolicy{}, policy) {
		assert.True(t, policy.(usecase.ThresholdPolicy).Threshold.Equal(decimal.NewFromInt(10000)))
	}
}

func TestIdempotencyCacheRequiresRedis(t *testing.T) {
	assert.Nil(t, idempotencyCache(nil))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	assert.NotNil(t, idempotencyCache(client))
}

func TestEventSink(t *testing.T) {
	cfg := &config.Config{OutboxStream: "ledger.events"}

	assert.IsType(t, &eventpublisher.LogPublisher{}, eventSink(cfg, nil, zerolog.Nop()))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	assert.IsType(t, &eventpublisher.RedisStreamPublisher{}, eventSink(cfg, client, zerolog.Nop()))
}
