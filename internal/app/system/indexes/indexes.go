// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.

The unique indexes on game_sessions, game_messages and game_responses are
what make concurrent ticks and replayed callbacks safe. Startup must not
continue without them.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"workspaces", ensureWorkspaces},
		{"groups", ensureGroups},
		{"games", ensureGames},
		{"game_sessions", ensureGameSessions},
		{"game_messages", ensureGameMessages},
		{"game_responses", ensureGameResponses},
		{"profiles", ensureProfiles},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool {
	return b != nil && *b
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB returns IndexOptionsConflict when an index with the same keys
// already exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listBySig(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		if err := reconcile(ctx, coll, m); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func reconcile(ctx context.Context, coll *mongo.Collection, m mongo.IndexModel) error {
	var name string
	var unique *bool
	if m.Options != nil {
		if m.Options.Name != nil {
			name = *m.Options.Name
		}
		unique = m.Options.Unique
	}
	sig := keySig(m.Keys.(bson.D))
	start := time.Now()
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("name", name),
		zap.String("keys", sig),
		zap.Bool("unique", boolVal(unique)))

	log.Info("ensuring index")

	ex, found := listBySig(ctx, coll)[sig]
	if found {
		if boolVal(ex.Unique) == boolVal(unique) && (name == "" || ex.Name == name) {
			log.Info("reusing existing index", zap.String("took", time.Since(start).String()))
			return nil
		}
		// Same keys, different name or uniqueness: drop and recreate.
		if err := recreate(ctx, coll, ex.Name, m, name, unique); err != nil {
			log.Warn("index recreate failed", zap.Error(err))
			return err
		}
		log.Info("index dropped and recreated",
			zap.String("from", ex.Name),
			zap.String("took", time.Since(start).String()))
		return nil
	}

	created, err := coll.Indexes().CreateOne(ctx, m)
	if err == nil {
		log.Info("index ensured",
			zap.String("created_name", created),
			zap.String("took", time.Since(start).String()))
		return nil
	}
	if isOptionsConflictErr(err) {
		if match, ok := listBySig(ctx, coll)[sig]; ok {
			if boolVal(match.Unique) == boolVal(unique) {
				log.Info("reusing existing index (post-conflict)", zap.String("existing", match.Name))
				return nil
			}
			if rerr := recreate(ctx, coll, match.Name, m, name, unique); rerr != nil {
				log.Warn("index recreate failed (post-conflict)", zap.Error(rerr))
				return rerr
			}
			return nil
		}
	}
	log.Warn("index ensure failed",
		zap.String("took", time.Since(start).String()),
		zap.Error(err))
	return fmt.Errorf("%s(%s): %v", coll.Name(), name, err)
}

func recreate(ctx context.Context, coll *mongo.Collection, existingName string, m mongo.IndexModel, name string, unique *bool) error {
	if _, err := coll.Indexes().DropOne(ctx, existingName); err != nil {
		return fmt.Errorf("%s(%s): drop failed: %v", coll.Name(), name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		if isDuplicateKeyErr(err) && boolVal(unique) {
			return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name)
		}
		return fmt.Errorf("%s(%s): %v", coll.Name(), name, err)
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureWorkspaces(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("workspaces"), []mongo.IndexModel{
		// One workspace per Slack team; interactions are routed by team id.
		{
			Keys:    bson.D{{Key: "slack_team_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_workspaces_team"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_workspaces_status_nameci__id"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("groups"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_groups_workspace_nameci"),
		},
		{
			Keys: bson.D{
				{Key: "workspace_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_groups_workspace_status_nameci__id"),
		},
	})
}

func ensureGames(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("games"), []mongo.IndexModel{
		// Tick query: is_active + status, optionally scoped to one workspace.
		{
			Keys: bson.D{
				{Key: "is_active", Value: 1},
				{Key: "status", Value: 1},
				{Key: "workspace_id", Value: 1},
			},
			Options: options.Index().SetName("idx_games_active_status_workspace"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_games_group"),
		},
	})
}

func ensureGameSessions(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("game_sessions"), []mongo.IndexModel{
		// At most one session per game per calendar date.
		{
			Keys:    bson.D{{Key: "game_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_game_sessions_game_date"),
		},
	})
}

func ensureGameMessages(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("game_messages"), []mongo.IndexModel{
		// A subject is shown to a recipient at most once per session. The
		// prefix (game_session_id, recipient_id) also serves seen-set reads.
		{
			Keys: bson.D{
				{Key: "game_session_id", Value: 1},
				{Key: "recipient_id", Value: 1},
				{Key: "subject_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_game_messages_session_recipient_subject"),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_game_messages_workspace_created"),
		},
	})
}

func ensureGameResponses(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("game_responses"), []mongo.IndexModel{
		// One response per responder per message.
		{
			Keys:    bson.D{{Key: "game_message_id", Value: 1}, {Key: "responder_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_game_responses_message_responder"),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "responder_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_game_responses_workspace_responder_created"),
		},
	})
}

func ensureProfiles(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("profiles"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "slack_user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_profiles_workspace_user"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_events_ts"),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_events_workspace_ts"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_events_category_type_ts"),
		},
	})
}
