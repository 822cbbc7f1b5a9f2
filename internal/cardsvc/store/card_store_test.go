package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
)

// scriptedFeed plays back a fixed list of change events, then reports the
// configured error.
type scriptedFeed struct {
	events []changeEvent
	tokens []bson.Raw
	errAt  error
	pos    int
	closed bool
}

func (f *scriptedFeed) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return f.pos < len(f.events)
}

func (f *scriptedFeed) Decode(v interface{}) error {
	ev, ok := v.(*changeEvent)
	if !ok {
		return errors.New("unexpected decode target")
	}
	*ev = f.events[f.pos]
	f.pos++
	return nil
}

func (f *scriptedFeed) ResumeToken() bson.Raw {
	if f.pos == 0 || f.pos > len(f.tokens) {
		return nil
	}
	return f.tokens[f.pos-1]
}

func (f *scriptedFeed) Err() error { return f.errAt }

func (f *scriptedFeed) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func updateEvent(id string, points int64) changeEvent {
	ev := changeEvent{
		OperationType: "update",
		FullDocument:  models.NewCard(id, "owner-1"),
	}
	ev.FullDocument.Points = points
	ev.DocumentKey.ID = id
	return ev
}

func TestOpenSubscriptionOpensFeedBeforeInitialRead(t *testing.T) {
	t.Parallel()

	var order []string
	feed := &scriptedFeed{}

	stream, cur, err := openSubscription(
		func() (changeFeed, error) {
			order = append(order, "feed")
			return feed, nil
		},
		func() (*models.Card, error) {
			order = append(order, "get")
			return models.NewCard("card-1", "owner-1"), nil
		},
	)
	if err != nil {
		t.Fatalf("openSubscription: %v", err)
	}
	if stream != feed {
		t.Fatalf("openSubscription returned a different feed")
	}
	if cur == nil || cur.ID != "card-1" {
		t.Fatalf("unexpected initial snapshot: %+v", cur)
	}
	if len(order) != 2 || order[0] != "feed" || order[1] != "get" {
		t.Fatalf("feed must be established before the initial read, got order %v", order)
	}
}

func TestOpenSubscriptionClosesFeedWhenReadFails(t *testing.T) {
	t.Parallel()

	feed := &scriptedFeed{}
	readErr := errors.New("read failed")

	_, _, err := openSubscription(
		func() (changeFeed, error) { return feed, nil },
		func() (*models.Card, error) { return nil, readErr },
	)
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	if !feed.closed {
		t.Fatalf("feed must be closed when the initial read fails")
	}
}

func TestWatchCardsResumesAfterStreamError(t *testing.T) {
	t.Parallel()

	prev := watchRetryDelay
	watchRetryDelay = time.Millisecond
	defer func() { watchRetryDelay = prev }()

	token := bson.Raw("tok-1")
	first := &scriptedFeed{
		events: []changeEvent{updateEvent("card-1", 3)},
		tokens: []bson.Raw{token},
		errAt:  errors.New("replica set election"),
	}
	second := &scriptedFeed{
		events: []changeEvent{updateEvent("card-1", 4)},
		tokens: []bson.Raw{bson.Raw("tok-2")},
	}

	ctx, cancel := context.WithCancel(context.Background())

	var opens int
	var resumes []bson.Raw
	open := func(ctx context.Context, resume bson.Raw) (changeFeed, error) {
		opens++
		resumes = append(resumes, resume)
		switch opens {
		case 1:
			return first, nil
		case 2:
			return second, nil
		default:
			cancel()
			return nil, ctx.Err()
		}
	}

	var got []int64
	err := watchCards(ctx, open, func(id string, card *models.Card) {
		got = append(got, card.Points)
		if len(got) == 2 {
			// both feeds consumed, let the third open end the loop
			second.errAt = errors.New("done")
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("watchCards: %v", err)
	}

	if opens != 3 {
		t.Fatalf("expected the watch to reopen after the stream error, opens = %d", opens)
	}
	if len(resumes) < 2 || resumes[0] != nil || string(resumes[1]) != string(token) {
		t.Fatalf("second open must resume from the last token, got %v", resumes)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("expected events from both feeds, got %v", got)
	}
	if !first.closed || !second.closed {
		t.Fatalf("interrupted feeds must be closed")
	}
}

func TestWatchCardsStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := watchCards(ctx, func(context.Context, bson.Raw) (changeFeed, error) {
		return nil, ctx.Err()
	}, func(string, *models.Card) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
