package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`).Error)
	return db
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	db := setupOutboxDB(t)
	svc := NewService(NewRepository(db), nil)
	quoteID := uuid.New()
	actorID := uuid.New()

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventPromotionApplied,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quoteID,
		Actor:         &ActorRef{UserID: actorID, Role: "patient"},
		Data:          map[string]any{"code": "SUMMER25"},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, quoteID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, currentEnvelopeVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	require.NotNil(t, env.Actor)
	assert.Equal(t, actorID, env.Actor.UserID)
	assert.JSONEq(t, `{"code":"SUMMER25"}`, string(env.Data))
}

func TestEmitRejectsUnknownEventAndMissingTx(t *testing.T) {
	db := setupOutboxDB(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventQuoteSubmitted})
	require.Error(t, err)

	err = svc.Emit(context.Background(), db, DomainEvent{EventType: "order_paid"})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	db := setupOutboxDB(t)
	svc := NewService(NewRepository(db), nil)
	promoID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventPromotionExpired,
		AggregateType: enums.AggregatePromotion,
		AggregateID:   promoID,
		Data:          map[string]any{"promotion_id": promoID},
	}

	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))
	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFetchAndMarkLifecycle(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventQuoteStatusChanged,
			AggregateType: enums.AggregateQuote,
			AggregateID:   uuid.New(),
			Data:          map[string]any{"n": i},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db.Session(&gorm.Session{}), 10, 3)
	if err != nil {
		// sqlite has no row locking; exercise the marking paths directly
		require.NoError(t, db.Find(&rows).Error)
	}
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, fmt.Errorf("pubsub unavailable")))
	require.NoError(t, repo.MarkTerminalTx(db, rows[2].ID, fmt.Errorf("bad payload"), 3))

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", rows[1].ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "pubsub unavailable", *failed.LastError)

	var terminal models.OutboxEvent
	require.NoError(t, db.First(&terminal, "id = ?", rows[2].ID).Error)
	assert.Equal(t, 3, terminal.AttemptCount)

	// backdate the published row so retention picks it up
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("id = ?", rows[0].ID).
		Update("published_at", time.Now().UTC().Add(-48*time.Hour)).Error)
	deleted, err := repo.DeletePublishedBefore(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
