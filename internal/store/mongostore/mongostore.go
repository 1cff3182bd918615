// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatcore/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers    = "users"
	collChats    = "chats"
	collMessages = "messages"
)

type userDoc struct {
	ID               string `bson:"_id"`
	Name             string `bson:"name"`
	Email            string `bson:"email"`
	Online           bool   `bson:"online"`
	LastSeen         int64  `bson:"last_seen"`
	PushSubscription string `bson:"push_subscription,omitempty"`
	CreatedAt        int64  `bson:"created_at"`
}

type chatDoc struct {
	ID                  string   `bson:"_id"`
	Participants        []string `bson:"participants"`
	LastMessage         string   `bson:"last_message"`
	LastMessageAt       int64    `bson:"last_message_at"`
	LastMessageSenderID string   `bson:"last_message_sender_id"`
	CreatedAt           int64    `bson:"created_at"`
}

type messageDoc struct {
	ID         string `bson:"_id"`
	ChatID     string `bson:"chat_id"`
	SenderID   string `bson:"sender_id"`
	SenderName string `bson:"sender_name"`
	Kind       string `bson:"kind"`
	Text       string `bson:"text"`
	ImageURL   string `bson:"image_url,omitempty"`
	Timestamp  int64  `bson:"timestamp"`
	Seq        int64  `bson:"seq"`
	Read       bool   `bson:"read"`
}

// Store is a store.Store backed by a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
	seq    atomic.Int64
}

var _ store.Store = (*Store)(nil)

// Connect dials uri and ensures the indexes the queries rely on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(database), now: time.Now}
	s.seq.Store(time.Now().UnixNano())
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers:    {{Keys: bson.D{{Key: "email", Value: 1}}}},
		collChats:    {{Keys: bson.D{{Key: "participants", Value: 1}}}},
		collMessages: {{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}}}, {Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "read", Value: 1}}}},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) serverTime() int64 {
	return s.now().UnixMilli()
}

func notFound(what string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	now := s.serverTime()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	if u.LastSeen == 0 {
		u.Online = true
		u.LastSeen = now
	}
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{
			"$set": bson.M{"name": u.Name, "email": u.Email},
			"$setOnInsert": bson.M{
				"online":     u.Online,
				"last_seen":  u.LastSeen,
				"created_at": u.CreatedAt,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	var doc userDoc
	if err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound("get user "+id, err)
	}
	return doc.toUser(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var doc userDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"email": email}, opts).Decode(&doc); err != nil {
		return nil, notFound("find user by email", err)
	}
	return doc.toUser(), nil
}

func (s *Store) UpdatePresence(ctx context.Context, userID string, online bool, at int64) error {
	res, err := s.db.Collection(collUsers).UpdateOne(ctx,
		presenceFilter(userID, at),
		bson.M{"$set": bson.M{"online": online, "last_seen": at}})
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update presence %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

// MergePresence upserts against the staleness filter. When the record exists
// with a newer last_seen the upsert collides on _id, which means the write is
// stale and is dropped.
func (s *Store) MergePresence(ctx context.Context, userID string, online bool, at int64) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		presenceFilter(userID, at),
		bson.M{
			"$set":         bson.M{"online": online, "last_seen": at},
			"$setOnInsert": bson.M{"created_at": s.serverTime()},
		},
		options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("merge presence: %w", err)
	}
	return nil
}

func presenceFilter(userID string, at int64) bson.M {
	return bson.M{
		"_id": userID,
		"$or": bson.A{
			bson.M{"last_seen": bson.M{"$lte": at}},
			bson.M{"last_seen": bson.M{"$exists": false}},
		},
	}
}

func (s *Store) UpdatePushSubscription(ctx context.Context, userID, subscription string) error {
	res, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"push_subscription": subscription}})
	if err != nil {
		return fmt.Errorf("update push subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update push subscription %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SavePushSubscription(ctx context.Context, userID, subscription string) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":         bson.M{"push_subscription": subscription},
			"$setOnInsert": bson.M{"created_at": s.serverTime()},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

func (s *Store) ChatsForUser(ctx context.Context, userID string) ([]store.Chat, error) {
	cur, err := s.db.Collection(collChats).Find(ctx, bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	var docs []chatDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	chats := make([]store.Chat, 0, len(docs))
	for _, d := range docs {
		chats = append(chats, d.toChat())
	}
	return chats, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (*store.Chat, error) {
	var doc chatDoc
	if err := s.db.Collection(collChats).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound("get chat "+id, err)
	}
	c := doc.toChat()
	return &c, nil
}

func (s *Store) CreateChat(ctx context.Context, participants []string) (*store.Chat, error) {
	doc := chatDoc{
		ID:           uuid.NewString(),
		Participants: append([]string(nil), participants...),
		CreatedAt:    s.serverTime(),
	}
	if _, err := s.db.Collection(collChats).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	c := doc.toChat()
	return &c, nil
}

func (s *Store) UpdateChatSummary(ctx context.Context, chatID, text, senderID string, at int64) error {
	res, err := s.db.Collection(collChats).UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$set": bson.M{
		"last_message":           text,
		"last_message_at":        at,
		"last_message_sender_id": senderID,
	}})
	if err != nil {
		return fmt.Errorf("update chat summary: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update chat summary %s: %w", chatID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) AddMessage(ctx context.Context, m *store.Message) (*store.Message, error) {
	doc := messageDoc{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Kind:       m.Kind,
		Text:       m.Text,
		ImageURL:   m.ImageURL,
		Timestamp:  s.serverTime(),
		Seq:        s.seq.Add(1),
		Read:       m.Read,
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Kind == "" {
		doc.Kind = store.KindText
	}
	if _, err := s.db.Collection(collMessages).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	out := doc.toMessage()
	return &out, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	cur, err := s.db.Collection(collMessages).Find(ctx, bson.M{"chat_id": chatID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	msgs := make([]store.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.toMessage())
	}
	return msgs, nil
}

func unreadFilter(chatID, senderID string) bson.M {
	return bson.M{"chat_id": chatID, "sender_id": senderID, "read": bson.M{"$ne": true}}
}

func (s *Store) UnreadMessageIDs(ctx context.Context, chatID, senderID string) ([]string, error) {
	cur, err := s.db.Collection(collMessages).Find(ctx, unreadFilter(chatID, senderID),
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode unread: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) CountUnread(ctx context.Context, chatID, senderID string) (int, error) {
	n, err := s.db.Collection(collMessages).CountDocuments(ctx, unreadFilter(chatID, senderID))
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return int(n), nil
}

// MarkRead runs the batch in a transaction; the deployment must be a replica set.
func (s *Store) MarkRead(ctx context.Context, chatID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		res, err := s.db.Collection(collMessages).UpdateMany(sc,
			bson.M{"chat_id": chatID, "_id": bson.M{"$in": ids}},
			bson.M{"$set": bson.M{"read": true}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount != int64(len(uniq(ids))) {
			return nil, fmt.Errorf("matched %d of %d: %w", res.MatchedCount, len(ids), store.ErrNotFound)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func uniq(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (d userDoc) toUser() *store.User {
	return &store.User{
		ID:               d.ID,
		Name:             d.Name,
		Email:            d.Email,
		Online:           d.Online,
		LastSeen:         d.LastSeen,
		PushSubscription: d.PushSubscription,
		CreatedAt:        d.CreatedAt,
	}
}

func (d chatDoc) toChat() store.Chat {
	return store.Chat{
		ID:                  d.ID,
		Participants:        d.Participants,
		LastMessage:         d.LastMessage,
		LastMessageAt:       d.LastMessageAt,
		LastMessageSenderID: d.LastMessageSenderID,
		CreatedAt:           d.CreatedAt,
	}
}

func (d messageDoc) toMessage() store.Message {
	return store.Message{
		ID:         d.ID,
		ChatID:     d.ChatID,
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		Kind:       d.Kind,
		Text:       d.Text,
		ImageURL:   d.ImageURL,
		Timestamp:  d.Timestamp,
		Read:       d.Read,
	}
}
