// internal/app/store/profiles/profilestore.go

package profilestore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("profiles")}
}

// CompletedAmong returns the subset of userIDs that have a completed
// profile in the workspace.
func (s *Store) CompletedAmong(ctx context.Context, workspaceID primitive.ObjectID, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(userIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"slack_user_id": 1})
	cur, err := s.c.Find(ctx, bson.M{
		"workspace_id":  workspaceID,
		"slack_user_id": bson.M{"$in": userIDs},
		"completed":     true,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			SlackUserID string `bson:"slack_user_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.SlackUserID] = true
	}
	return out, cur.Err()
}

// MarkLinkSent upserts the profile row and records when the onboarding link
// was last delivered.
func (s *Store) MarkLinkSent(ctx context.Context, workspaceID primitive.ObjectID, userID string, at time.Time) error {
	at = at.UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID, "slack_user_id": userID},
		bson.M{
			"$set": bson.M{"link_sent_at": at, "updated_at": at},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"completed":  false,
				"created_at": at,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// MarkCompleted records that the user finished the onboarding form.
func (s *Store) MarkCompleted(ctx context.Context, workspaceID primitive.ObjectID, userID string) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID, "slack_user_id": userID},
		bson.M{
			"$set": bson.M{"completed": true, "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
