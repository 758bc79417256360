package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pelusa-v/yummy-chat/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo reads the friendships and groups collections owned by the membership service.
type Mongo struct {
	db     *mongo.Database
	client *mongo.Client
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

// ConnectMongo opens a dedicated client; Close disconnects it.
func ConnectMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("directory: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("directory: ping: %w", err)
	}
	return &Mongo{db: client.Database(dbName), client: client}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Friendships() Friendships { return mongoFriendships{m.db.Collection("friendships")} }
func (m *Mongo) Groups() Groups           { return mongoGroups{m.db.Collection("groups")} }

type mongoFriendships struct{ col *mongo.Collection }

func (f mongoFriendships) find(ctx context.Context, id string) (*Friendship, error) {
	var fr Friendship
	err := f.col.FindOne(ctx, bson.M{"_id": id}).Decode(&fr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find friendship: %w", err)
	}
	return &fr, nil
}

func (f mongoFriendships) RoleOf(ctx context.Context, username, conversationID string) (model.Role, error) {
	fr, err := f.find(ctx, conversationID)
	switch {
	case err != nil:
		return model.RoleNone, err
	case fr == nil:
		return model.RoleNone, nil
	case fr.Sender == username:
		return model.RoleSender, nil
	case fr.Receiver == username:
		return model.RoleReceiver, nil
	}
	return model.RoleNone, nil
}

func (f mongoFriendships) CounterpartOf(ctx context.Context, username, conversationID string) (string, error) {
	fr, err := f.find(ctx, conversationID)
	switch {
	case err != nil:
		return "", err
	case fr == nil:
	case fr.Sender == username:
		return fr.Receiver, nil
	case fr.Receiver == username:
		return fr.Sender, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, conversationID)
}

func (f mongoFriendships) ConversationsOf(ctx context.Context, username string) ([]string, error) {
	cur, err := f.col.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"sender": username},
		bson.M{"receiver": username},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}
	var docs []Friendship
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode friendships: %w", err)
	}
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	sort.Strings(out)
	return out, nil
}

type mongoGroups struct{ col *mongo.Collection }

func (g mongoGroups) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	var doc Group
	err := g.col.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return doc.Members, nil
}

func (g mongoGroups) RoleOf(ctx context.Context, username, groupID string) (model.Role, error) {
	n, err := g.col.CountDocuments(ctx, bson.M{"_id": groupID, "members": username})
	if err != nil {
		return model.RoleNone, fmt.Errorf("failed to check group membership: %w", err)
	}
	if n == 0 {
		return model.RoleNone, nil
	}
	return model.RoleMember, nil
}

func (g mongoGroups) GroupsOf(ctx context.Context, username string) ([]string, error) {
	cur, err := g.col.Find(ctx, bson.M{"members": username})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	var docs []Group
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	sort.Strings(out)
	return out, nil
}
