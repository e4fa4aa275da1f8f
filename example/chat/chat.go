// Package chat is a runnable example schema: a chat service with message
// history, a mutation that publishes through the broker, and a filtered
// subscription re-resolved per event.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaipe/async-graphql/internal/broker"
	"github.com/shaipe/async-graphql/internal/cachecontrol"
	"github.com/shaipe/async-graphql/internal/eventbus"
	"github.com/shaipe/async-graphql/internal/events"
	"github.com/shaipe/async-graphql/internal/executor"
	"github.com/shaipe/async-graphql/internal/schema"
)

// Message is one chat message.
type Message struct {
	ID     string
	RoomID string
	Author string
	Text   string
	SentAt time.Time
}

// Service owns the message history and the subscription broker.
type Service struct {
	broker *broker.Broker

	mu       sync.RWMutex
	messages map[string][]*Message // room id -> history
}

func NewService() *Service {
	return &Service{
		broker: broker.New(broker.WithDropHandler(func(topic, subscriberID string) {
			eventbus.Publish(context.Background(), events.BrokerDrop{
				SubscriberID: subscriberID,
				Topic:        topic,
			})
		})),
		messages: make(map[string][]*Message),
	}
}

func roomTopic(roomID string) string { return "room:" + roomID }

func (s *Service) send(ctx context.Context, roomID, author, text string) *Message {
	msg := &Message{
		ID:     uuid.NewString(),
		RoomID: roomID,
		Author: author,
		Text:   text,
		SentAt: time.Now(),
	}
	s.mu.Lock()
	s.messages[roomID] = append(s.messages[roomID], msg)
	s.mu.Unlock()

	s.broker.Publish(ctx, roomTopic(roomID), msg)
	return msg
}

func (s *Service) history(roomID string, last int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[roomID]
	if last > 0 && last < len(all) {
		all = all[len(all)-last:]
	}
	out := make([]*Message, len(all))
	copy(out, all)
	return out
}

// Schema builds the chat schema over the service.
func (s *Service) Schema() (*schema.Schema, error) {
	messageFields := []*schema.Field{
		{Name: "id", Type: schema.NonNullType(schema.NamedType("ID")), Resolver: messageField(func(m *Message) any { return m.ID })},
		{Name: "roomId", Type: schema.NonNullType(schema.NamedType("ID")), Resolver: messageField(func(m *Message) any { return m.RoomID })},
		{Name: "author", Type: schema.NonNullType(schema.NamedType("String")), Resolver: messageField(func(m *Message) any { return m.Author })},
		{Name: "text", Type: schema.NonNullType(schema.NamedType("String")), Resolver: messageField(func(m *Message) any { return m.Text })},
		{Name: "sentAt", Type: schema.NonNullType(schema.NamedType("String")), Resolver: messageField(func(m *Message) any { return m.SentAt.UTC().Format(time.RFC3339) })},
	}

	return schema.NewBuilder().
		SetQueryType("Query").
		SetMutationType("Mutation").
		SetSubscriptionType("Subscription").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{
					Name: "messages",
					Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Message")))),
					Arguments: []*schema.InputValue{
						{Name: "roomId", Type: schema.NonNullType(schema.NamedType("ID"))},
						{Name: "last", Type: schema.NamedType("Int"), DefaultValue: 0},
					},
					Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
						roomID, _ := args["roomId"].(string)
						last, _ := args["last"].(int)
						history := s.history(roomID, last)
						out := make([]any, len(history))
						for i, m := range history {
							out[i] = m
						}
						return out, nil
					},
					CacheHint: &cachecontrol.Hint{MaxAge: 5 * time.Second, Scope: cachecontrol.ScopePrivate},
				},
				{
					Name: "roomSubscribers",
					Type: schema.NonNullType(schema.NamedType("Int")),
					Arguments: []*schema.InputValue{
						{Name: "roomId", Type: schema.NonNullType(schema.NamedType("ID"))},
					},
					Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
						roomID, _ := args["roomId"].(string)
						return s.broker.SubscriberCount(roomTopic(roomID)), nil
					},
				},
			},
		}).
		AddType(&schema.Type{
			Name: "Mutation",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name: "sendMessage",
				Type: schema.NonNullType(schema.NamedType("Message")),
				Arguments: []*schema.InputValue{
					{Name: "roomId", Type: schema.NonNullType(schema.NamedType("ID"))},
					{Name: "author", Type: schema.NonNullType(schema.NamedType("String"))},
					{Name: "text", Type: schema.NonNullType(schema.NamedType("String"))},
				},
				Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
					text, _ := args["text"].(string)
					if text == "" {
						return nil, fmt.Errorf("message text must not be empty")
					}
					roomID, _ := args["roomId"].(string)
					author, _ := args["author"].(string)
					return s.send(ctx, roomID, author, text), nil
				},
			}},
		}).
		AddType(&schema.Type{
			Name: "Subscription",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name: "messageAdded",
				Type: schema.NonNullType(schema.NamedType("Message")),
				Arguments: []*schema.InputValue{
					{Name: "roomId", Type: schema.NonNullType(schema.NamedType("ID"))},
					{Name: "author", Type: schema.NamedType("String")},
				},
				Source: func(ctx context.Context, args map[string]any) (schema.EventStream, error) {
					roomID, _ := args["roomId"].(string)
					return s.broker.Subscribe(roomTopic(roomID)), nil
				},
				// Re-resolved for every event; an author filter drops events
				// from other authors without waking the client.
				Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
					msg, ok := source.(*Message)
					if !ok {
						return nil, fmt.Errorf("unexpected event payload %T", source)
					}
					if author, ok := args["author"].(string); ok && author != "" && msg.Author != author {
						return nil, executor.ErrEventFiltered
					}
					return msg, nil
				},
			}},
		}).
		AddType(&schema.Type{
			Name:   "Message",
			Kind:   schema.TypeKindObject,
			Fields: messageFields,
		}).
		Build()
}

func messageField(get func(*Message) any) schema.ResolverFunc {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		msg, ok := source.(*Message)
		if !ok {
			return nil, fmt.Errorf("expected *Message source, got %T", source)
		}
		return get(msg), nil
	}
}
