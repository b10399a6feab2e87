// internal/app/store/gamemessages/gamemessagestore.go
package gamemessagestore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateMessage = errors.New("subject already shown to this recipient in this session")
	ErrNotFound         = errors.New("game message not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("game_messages")}
}

// Create inserts a message record before it is sent. A repeat of
// (game_session_id, recipient_id, subject_id) returns ErrDuplicateMessage.
func (s *Store) Create(ctx context.Context, m models.GameMessage) (models.GameMessage, error) {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GameMessage{}, ErrDuplicateMessage
		}
		return models.GameMessage{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.GameMessage, error) {
	var m models.GameMessage
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GameMessage{}, ErrNotFound
		}
		return models.GameMessage{}, err
	}
	return m, nil
}

// AttachProviderMessage stores the Slack message ts after a successful send.
func (s *Store) AttachProviderMessage(ctx context.Context, id primitive.ObjectID, providerMessageID string, sentAt time.Time) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"provider_message_id": providerMessageID,
		"sent_at":             sentAt.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SubjectsShown returns the subject ids already recorded for recipientID
// within sessionID.
func (s *Store) SubjectsShown(ctx context.Context, sessionID primitive.ObjectID, recipientID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"subject_id": 1})
	cur, err := s.c.Find(ctx, bson.M{
		"game_session_id": sessionID,
		"recipient_id":    recipientID,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		SubjectID string `bson:"subject_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.SubjectID)
	}
	return out, nil
}

// MarkResponded sets responded=true. It is a no-op for an already
// responded message.
func (s *Store) MarkResponded(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"responded": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBySession returns all messages of a session in creation order.
func (s *Store) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.GameMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"game_session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GameMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
