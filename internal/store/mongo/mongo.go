package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelusa-v/yummy-chat/internal/config"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	store.Register(store.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (store.Store, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.DBURL == "" {
				return nil, errors.New("mongo store: db-url is required")
			}
			s, err := Connect(ctx, cfg.DBURL, cfg.DBName)
			if err != nil {
				return nil, err
			}
			if err := s.Migrate(ctx); err != nil {
				s.Close(ctx)
				return nil, err
			}
			return s, nil
		},
	})
}

const (
	colLogs     = "conversation_logs"
	colMessages = "messages"
	colHidden   = "hidden_messages"
	colCursors  = "cursors"
)

type logDoc struct {
	ID        string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type messageDoc struct {
	ConversationID string `bson:"conversation_id"`
	model.Message  `bson:",inline"`
}

type hiddenDoc struct {
	model.ListKey `bson:",inline"`
	MsgID         string `bson:"msg_id"`
}

type cursorDoc struct {
	model.ListKey `bson:",inline"`
	Time          time.Time `bson:"time"`
}

// Store implements store.Store on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB and pings it.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Migrate creates the collections and indexes the store relies on.
func (s *Store) Migrate(ctx context.Context) error {
	listIndex := bson.D{{Key: "conversation_id", Value: 1}, {Key: "side", Value: 1}, {Key: "member", Value: 1}}
	collections := map[string][]mongo.IndexModel{
		colLogs: nil,
		colMessages: {
			{
				Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "msg_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "create_time", Value: 1}}},
		},
		colHidden: {
			{
				Keys:    append(append(bson.D{}, listIndex...), bson.E{Key: "msg_id", Value: 1}),
				Options: options.Index().SetUnique(true),
			},
		},
		colCursors: {
			{Keys: listIndex, Options: options.Index().SetUnique(true)},
		},
	}
	for name, indexes := range collections {
		// CreateCollection fails when the collection exists; that is fine.
		s.db.CreateCollection(ctx, name)
		if len(indexes) == 0 {
			continue
		}
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
		}
	}
	log.Info("MongoDB chat schema migration complete", "db", s.db.Name())
	return nil
}

func (s *Store) logs() *mongo.Collection     { return s.db.Collection(colLogs) }
func (s *Store) messages() *mongo.Collection { return s.db.Collection(colMessages) }
func (s *Store) hidden() *mongo.Collection   { return s.db.Collection(colHidden) }
func (s *Store) cursors() *mongo.Collection  { return s.db.Collection(colCursors) }

func (s *Store) CreateLog(ctx context.Context, conversationID string) error {
	_, err := s.logs().InsertOne(ctx, logDoc{ID: conversationID, CreatedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return &store.ConflictError{Resource: "conversation log", ID: conversationID}
	}
	if err != nil {
		return fmt.Errorf("failed to create conversation log: %w", err)
	}
	return nil
}

func (s *Store) requireLog(ctx context.Context, conversationID string) error {
	err := s.logs().FindOne(ctx, bson.M{"_id": conversationID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", store.ErrConversationNotFound, conversationID)
	}
	return err
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	if err := s.requireLog(ctx, conversationID); err != nil {
		return err
	}
	_, err := s.messages().InsertOne(ctx, messageDoc{ConversationID: conversationID, Message: msg})
	if mongo.IsDuplicateKeyError(err) {
		return &store.ConflictError{Resource: "message", ID: msg.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *Store) Messages(ctx context.Context, conversationID string, filter model.Filter) ([]model.Message, error) {
	if err := s.requireLog(ctx, conversationID); err != nil {
		return nil, err
	}
	q := bson.M{"conversation_id": conversationID}
	if filter.Start != nil || filter.End != nil {
		rng := bson.M{}
		if filter.Start != nil {
			rng["$gte"] = *filter.Start
		}
		if filter.End != nil {
			rng["$lte"] = *filter.End
		}
		q["create_time"] = rng
	}
	if filter.Sender != "" {
		q["sender"] = filter.Sender
	}
	if filter.Content != "" {
		q["content"] = bson.M{"$regex": regexp.QuoteMeta(filter.Content), "$options": "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "create_time", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.messages().Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	out := make([]model.Message, len(docs))
	for i, d := range docs {
		out[i] = d.Message
	}
	return out, nil
}

func (s *Store) GetMessage(ctx context.Context, conversationID, msgID string) (*model.Message, error) {
	var doc messageDoc
	err := s.messages().FindOne(ctx, bson.M{"conversation_id": conversationID, "msg_id": msgID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", store.ErrMessageNotFound, msgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &doc.Message, nil
}

func (s *Store) IncrementRef(ctx context.Context, conversationID, msgID string) error {
	result, err := s.messages().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID, "msg_id": msgID},
		bson.M{"$inc": bson.M{"ref_count": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment ref count: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", store.ErrMessageNotFound, msgID)
	}
	return nil
}

func listFilter(k model.ListKey) bson.M {
	return bson.M{"conversation_id": k.ConversationID, "side": k.Side, "member": k.Member}
}

func (s *Store) Hide(ctx context.Context, k model.ListKey, msgID string) error {
	f := listFilter(k)
	f["msg_id"] = msgID
	// The upsert copies the filter fields; $setOnInsert makes a repeated hide a no-op.
	_, err := s.hidden().UpdateOne(ctx, f,
		bson.M{"$setOnInsert": bson.M{"hidden_at": time.Now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to hide message: %w", err)
	}
	return nil
}

func (s *Store) Hidden(ctx context.Context, k model.ListKey) (map[string]struct{}, error) {
	cur, err := s.hidden().Find(ctx, listFilter(k))
	if err != nil {
		return nil, fmt.Errorf("failed to list hidden messages: %w", err)
	}
	var docs []hiddenDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode hidden messages: %w", err)
	}
	out := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		out[d.MsgID] = struct{}{}
	}
	return out, nil
}

func (s *Store) SetCursor(ctx context.Context, k model.ListKey, t time.Time) error {
	_, err := s.cursors().UpdateOne(ctx, listFilter(k),
		bson.M{"$set": bson.M{"time": t}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}

func (s *Store) Cursor(ctx context.Context, k model.ListKey) (time.Time, bool, error) {
	var doc cursorDoc
	err := s.cursors().FindOne(ctx, listFilter(k)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get cursor: %w", err)
	}
	return doc.Time, true, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
