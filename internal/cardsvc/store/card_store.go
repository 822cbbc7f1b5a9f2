package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
	"github.com/a112660307-droid/reward-card/internal/sync"
)

const cardCollection = "cards"

// CardStore keeps card documents in Mongo. It satisfies sync.Adapter: the
// point and reward writes are single field-level update commands, so
// concurrent sessions converge without a lost-update window.
type CardStore struct {
	col *mongo.Collection
}

func NewCardStore(db *mongo.Database) *CardStore {
	return &CardStore{col: db.Collection(cardCollection)}
}

// Get returns nil when no document with the id exists.
func (s *CardStore) Get(ctx context.Context, id string) (*models.Card, error) {
	card := &models.Card{}
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(card)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	return card, nil
}

// CreateIfAbsent writes the initial document with an upsert that only sets
// fields on insert; an existing card, and with it the recorded owner, is
// never touched.
func (s *CardStore) CreateIfAbsent(ctx context.Context, card *models.Card) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": card.ID},
		bson.M{"$setOnInsert": bson.M{
			"ownerIdentity":  card.OwnerIdentity,
			"points":         int64(0),
			"rewards":        []models.Reward{},
			"bannerImageUrl": "",
			"stampImageUrl":  "",
			"updatedAt":      time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("create card %s: %w", card.ID, err)
	}
	return nil
}

// SetFields merges the named fields and advances updatedAt.
func (s *CardStore) SetFields(ctx context.Context, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$currentDate": bson.M{"updatedAt": true}},
	)
	if err != nil {
		return fmt.Errorf("update card %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update card %s: no such card", id)
	}
	return nil
}

// AddPoints applies the clamped balance move in one pipeline update, so two
// concurrent increments both land.
func (s *CardStore) AddPoints(ctx context.Context, id string, delta int64) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"points":    bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$points", delta}}}},
				"updatedAt": "$$NOW",
			}}},
		},
	)
	if err != nil {
		return fmt.Errorf("add points on card %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("add points on card %s: no such card", id)
	}
	return nil
}

// SpendPoints decrements only when the balance covers the cost; the filter
// and decrement travel in one command.
func (s *CardStore) SpendPoints(ctx context.Context, id string, cost int64) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "points": bson.M{"$gte": cost}},
		bson.M{"$inc": bson.M{"points": -cost}, "$currentDate": bson.M{"updatedAt": true}},
	)
	if err != nil {
		return false, fmt.Errorf("spend points on card %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

// PushReward prepends the reward, keeping the newest-first display order.
func (s *CardStore) PushReward(ctx context.Context, id string, r models.Reward) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push":        bson.M{"rewards": bson.M{"$each": bson.A{r}, "$position": 0}},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return fmt.Errorf("push reward on card %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("push reward on card %s: no such card", id)
	}
	return nil
}

// PullReward removes one reward by id, leaving the rest untouched.
func (s *CardStore) PullReward(ctx context.Context, id, rewardID string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$pull":        bson.M{"rewards": bson.M{"id": rewardID}},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return fmt.Errorf("pull reward %s on card %s: %w", rewardID, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("pull reward on card %s: no such card", id)
	}
	return nil
}

type changeEvent struct {
	OperationType string       `bson:"operationType"`
	FullDocument  *models.Card `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// changeFeed is the slice of *mongo.ChangeStream the watch loops consume;
// the seam exists so the loops can be exercised without a replica set.
type changeFeed interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

var watchRetryDelay = time.Second

// openSubscription establishes the change feed before the initial read. The
// order matters: a write landing between the two calls arrives through the
// feed as a duplicate of the snapshot instead of being lost.
func openSubscription(openFeed func() (changeFeed, error), get func() (*models.Card, error)) (changeFeed, *models.Card, error) {
	stream, err := openFeed()
	if err != nil {
		return nil, nil, err
	}

	cur, err := get()
	if err != nil {
		stream.Close(context.Background())
		return nil, nil, err
	}
	return stream, cur, nil
}

// Subscribe delivers the current state once immediately, then every change
// from a change stream on the document. fn receives nil when the document
// is deleted.
func (s *CardStore) Subscribe(ctx context.Context, id string, fn func(*models.Card)) (sync.Unsubscribe, error) {
	openFeed := func() (changeFeed, error) {
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"documentKey._id": id}}},
		}
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		stream, err := s.col.Watch(ctx, pipeline, opts)
		if err != nil {
			return nil, fmt.Errorf("watch card %s: %w", id, err)
		}
		return stream, nil
	}

	stream, cur, err := openSubscription(openFeed, func() (*models.Card, error) { return s.Get(ctx, id) })
	if err != nil {
		return nil, err
	}

	fn(cur)

	streamCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				log.Errorf("decode change event for card %s: %v", id, err)
				continue
			}
			deliverEvent(ev, fn)
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			log.Errorf("change stream for card %s ended: %v", id, err)
		}
	}()

	return func() { cancel() }, nil
}

func (s *CardStore) openCardFeed(ctx context.Context, resume bson.Raw) (changeFeed, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if resume != nil {
		opts.SetResumeAfter(resume)
	}
	return s.col.Watch(ctx, mongo.Pipeline{}, opts)
}

// WatchAll streams every card change in the collection to fn; deletes are
// delivered with a nil card. The card service uses this to broadcast
// snapshots to the gateways. Transient stream failures are retried from the
// last resume token, so broadcasting survives replica-set elections.
func (s *CardStore) WatchAll(ctx context.Context, fn func(id string, card *models.Card)) error {
	return watchCards(ctx, s.openCardFeed, fn)
}

func watchCards(ctx context.Context, open func(context.Context, bson.Raw) (changeFeed, error), fn func(string, *models.Card)) error {
	var resume bson.Raw
	for {
		stream, err := open(ctx, resume)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("open card watch: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(watchRetryDelay):
			}
			continue
		}

		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				log.Errorf("decode change event: %v", err)
				continue
			}
			if tok := stream.ResumeToken(); tok != nil {
				resume = tok
			}
			deliverEvent(ev, func(card *models.Card) { fn(ev.DocumentKey.ID, card) })
		}

		err = stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Errorf("card watch interrupted, resuming: %v", err)
		}
	}
}

func deliverEvent(ev changeEvent, fn func(*models.Card)) {
	switch ev.OperationType {
	case "delete":
		fn(nil)
	case "insert", "update", "replace":
		if ev.FullDocument != nil {
			fn(ev.FullDocument)
		}
	}
}
