package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mobilia/admin-gateway/internal/core/domain"
)

const auditCollection = "auth_audit"

// MongoAuditRepository persists the auth audit trail.
type MongoAuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{coll: db.Collection(auditCollection)}
}

type mongoAuditEvent struct {
	SessionID  string `bson:"session_id"`
	Kind       string `bson:"kind"`
	Identifier string `bson:"identifier,omitempty"`
	Success    bool   `bson:"success"`
	Reason     string `bson:"reason,omitempty"`
	Timestamp  int64  `bson:"timestamp"`
}

func (r *MongoAuditRepository) Insert(ctx context.Context, event *domain.AuditEvent) error {
	doc := mongoAuditEvent{
		SessionID:  event.SessionID,
		Kind:       event.Kind,
		Identifier: event.Identifier,
		Success:    event.Success,
		Reason:     event.Reason,
		Timestamp:  event.Timestamp.Unix(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *MongoAuditRepository) FindBySession(ctx context.Context, sid string, limit int64) ([]*domain.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"session_id": sid}, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit events: %w", err)
	}
	defer cur.Close(ctx)

	var events []*domain.AuditEvent
	for cur.Next(ctx) {
		var me mongoAuditEvent
		if err := cur.Decode(&me); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, &domain.AuditEvent{
			SessionID:  me.SessionID,
			Kind:       me.Kind,
			Identifier: me.Identifier,
			Success:    me.Success,
			Reason:     me.Reason,
			Timestamp:  time.Unix(me.Timestamp, 0).UTC(),
		})
	}
	return events, cur.Err()
}
