package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taply/backend/internal/models"
)

const DefaultMongoDB = "taply"

// MongoStore keeps one document per account. Email and username are stored
// lowercase and carry unique indexes; analytics use $inc.
type MongoStore struct {
	client   *mongo.Client
	accounts *mongo.Collection
	now      func() time.Time
}

// mongoAccount is the stored document. The profile is kept as a plain
// document so keys the server does not know about survive.
type mongoAccount struct {
	ID           string           `bson:"_id"`
	Email        string           `bson:"email"`
	PasswordHash string           `bson:"password_hash"`
	Username     string           `bson:"username"`
	Token        string           `bson:"token"`
	Profile      bson.M           `bson:"profile"`
	Analytics    models.Analytics `bson:"analytics"`
	Plan         string           `bson:"plan"`
	CreatedAt    time.Time        `bson:"created_at"`
	UpdatedAt    time.Time        `bson:"updated_at"`
}

func mongoFromAccount(acc *models.Account) (*mongoAccount, error) {
	data, err := json.Marshal(acc.Profile)
	if err != nil {
		return nil, err
	}
	var profile bson.M
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	analytics := acc.Analytics.Clone()
	for id := range analytics.LinkClicks {
		if !validMongoKey(id) {
			return nil, fmt.Errorf("%w: link id %q", ErrInvalid, id)
		}
	}
	return &mongoAccount{
		ID:           acc.ID,
		Email:        strings.ToLower(acc.Email),
		PasswordHash: acc.PasswordHash,
		Username:     strings.ToLower(acc.Username),
		Token:        acc.Token,
		Profile:      profile,
		Analytics:    analytics,
		Plan:         acc.Plan,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}, nil
}

func (d *mongoAccount) account() (*models.Account, error) {
	acc := &models.Account{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Username:     d.Username,
		Token:        d.Token,
		Analytics:    d.Analytics,
		Plan:         d.Plan,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if acc.Analytics.LinkClicks == nil {
		acc.Analytics.LinkClicks = map[string]int64{}
	}
	if d.Profile != nil {
		data, err := json.Marshal(d.Profile)
		if err != nil {
			return nil, fmt.Errorf("encode profile of %s: %w", d.ID, err)
		}
		if err := json.Unmarshal(data, &acc.Profile); err != nil {
			return nil, fmt.Errorf("decode profile of %s: %w", d.ID, err)
		}
	}
	return acc, nil
}

// validMongoKey reports whether id can be used as a field name under linkClicks.
func validMongoKey(id string) bool {
	return id != "" && !strings.Contains(id, ".") && !strings.HasPrefix(id, "$")
}

// NewMongoStore connects, pings and ensures the unique indexes exist.
func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	if dbName == "" {
		dbName = DefaultMongoDB
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	s := &MongoStore{
		client:   client,
		accounts: client.Database(dbName).Collection("accounts"),
		now:      time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "token", Value: 1}}},
	})
	return err
}

func mongoFilter(l Lookup) bson.M {
	switch l.Field {
	case FieldEmail:
		return bson.M{"email": strings.ToLower(l.Value)}
	case FieldUsername:
		return bson.M{"username": strings.ToLower(l.Value)}
	case FieldToken:
		return bson.M{"token": l.Value}
	default:
		return bson.M{"_id": l.Value}
	}
}

func (s *MongoStore) FindAccount(ctx context.Context, lookup Lookup) (*models.Account, error) {
	if lookup.Value == "" {
		return nil, ErrNotFound
	}
	var doc mongoAccount
	if err := s.accounts.FindOne(ctx, mongoFilter(lookup)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.account()
}

func (s *MongoStore) CreateAccount(ctx context.Context, acc *models.Account) error {
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	doc, err := mongoFromAccount(acc)
	if err != nil {
		return err
	}
	if _, err := s.accounts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoStore) SaveAccount(ctx context.Context, acc *models.Account) error {
	acc.UpdatedAt = s.now()

	doc, err := mongoFromAccount(acc)
	if err != nil {
		return err
	}
	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": acc.ID}, bson.M{"$set": bson.M{
		"email":         doc.Email,
		"password_hash": doc.PasswordHash,
		"username":      doc.Username,
		"token":         doc.Token,
		"profile":       doc.Profile,
		"plan":          doc.Plan,
		"updated_at":    doc.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateAnalytics(ctx context.Context, username string, ev models.AnalyticsEvent) error {
	var field string
	switch ev.Kind {
	case models.EventPageView:
		field = "analytics.pageViews"
	case models.EventLinkClick:
		if !validMongoKey(ev.LinkID) {
			return fmt.Errorf("%w: link id %q", ErrInvalid, ev.LinkID)
		}
		field = "analytics.linkClicks." + ev.LinkID
	default:
		return ErrInvalid
	}

	res, err := s.accounts.UpdateOne(ctx,
		bson.M{"username": strings.ToLower(strings.TrimSpace(username))},
		bson.M{"$inc": bson.M{field: int64(1)}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetAnalytics(ctx context.Context, id string, patch models.AnalyticsPatch) error {
	set := bson.M{}
	if patch.PageViews != nil {
		set["analytics.pageViews"] = *patch.PageViews
	}
	if patch.LinkClicks != nil {
		for link := range patch.LinkClicks {
			if !validMongoKey(link) {
				return fmt.Errorf("%w: link id %q", ErrInvalid, link)
			}
		}
		set["analytics.linkClicks"] = patch.LinkClicks
	}
	if len(set) == 0 {
		_, err := s.FindAccount(ctx, ByID(id))
		return err
	}

	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	cur, err := s.accounts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Account, 0)
	for cur.Next(ctx) {
		var doc mongoAccount
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		acc, err := doc.account()
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
