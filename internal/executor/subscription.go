package executor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shaipe/async-graphql/internal/eventbus"
	"github.com/shaipe/async-graphql/internal/events"
	"github.com/shaipe/async-graphql/internal/gqlerr"
	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
	"github.com/shaipe/async-graphql/internal/value"
)

func newEventResult(responseName string, v any) *value.Map {
	m := value.NewMap()
	m.Set(responseName, v)
	return m
}

// ErrEventFiltered signals from a subscription field resolver that the
// current event should be skipped silently: no response is sent and no error
// is recorded for it.
var ErrEventFiltered = errors.New("event filtered")

// ExecuteSubscription establishes the event stream for a subscription
// operation and returns a channel of per-event responses. Setup failures
// (unknown operation, bad variables, a source error) are returned
// immediately; after that, each upstream event is executed as its own
// independent request with the event as the root field's source value.
//
// Events for one subscriber are executed strictly in arrival order. The
// returned channel closes when ctx is canceled or the upstream stream ends.
func (e *Executor) ExecuteSubscription(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
) (<-chan *Response, error) {
	operation := getOperation(document, operationName)
	if operation == nil {
		return nil, errors.New("operation not found")
	}
	if operation.Operation != language.Subscription {
		return nil, errors.New("operation is not a subscription")
	}

	subscriptionType := e.schema.GetSubscriptionType()
	if subscriptionType == nil {
		return nil, errors.New("schema does not support subscription operations")
	}

	coercedVariables, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return nil, err
	}

	// The root selection set of a subscription must collect to exactly one
	// field group.
	setupCtx := newExecContext(e.schema, document, coercedVariables)
	grouped := collectFields(setupCtx, subscriptionType, operation.SelectionSet).orderedFields()
	if len(grouped) != 1 {
		return nil, errors.New("subscription operations must select exactly one root field")
	}
	cf := grouped[0]
	rootField := cf.Fields[0]

	fieldDef := subscriptionType.Field(rootField.Name)
	if fieldDef == nil {
		return nil, errors.New("cannot subscribe to unknown field " + rootField.Name)
	}
	if fieldDef.Source == nil {
		return nil, errors.New("field " + rootField.Name + " does not produce an event stream")
	}

	args, argsOK := coerceArgumentValues(ctx, setupCtx, fieldDef, rootField.Arguments, gqlerr.Path{}.Append(cf.ResponseName))
	if !argsOK {
		errs := setupCtx.errs.Drain()
		return nil, errs[0]
	}

	stream, err := fieldDef.Source(setupCtx.resolverContext(ctx, gqlerr.Path{}.Append(cf.ResponseName)), args)
	if err != nil {
		return nil, err
	}

	// Every subscriber carries a correlation key through its lifecycle events.
	// Broker-backed streams expose their own; other streams get a fresh one.
	subscriberID := uuid.NewString()
	if ident, ok := stream.(interface{ ID() string }); ok {
		subscriberID = ident.ID()
	}
	var topic string
	if tp, ok := stream.(interface{ Topic() string }); ok {
		topic = tp.Topic()
	}

	eventbus.Publish(ctx, events.SubscriptionStart{
		SubscriberID:  subscriberID,
		Topic:         topic,
		OperationName: operationName,
		Field:         rootField.Name,
	})

	out := make(chan *Response)
	go e.runSubscription(ctx, subscriberID, subscriptionType, fieldDef, cf, stream, coercedVariables, document, out)
	return out, nil
}

// runSubscription drives one subscriber's event loop: receive, resolve,
// complete, deliver, in order, until the stream ends or the context is done.
func (e *Executor) runSubscription(
	ctx context.Context,
	subscriberID string,
	subscriptionType *schema.Type,
	fieldDef *schema.Field,
	cf collectedField,
	stream schema.EventStream,
	variables map[string]any,
	document *language.QueryDocument,
	out chan<- *Response,
) {
	defer close(out)
	defer stream.Close()

	var delivered int64
	defer func() {
		eventbus.Publish(context.WithoutCancel(ctx), events.SubscriptionFinish{
			SubscriberID: subscriberID,
			Field:        fieldDef.Name,
			Events:       delivered,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream.Events():
			if !ok {
				return
			}
			resp, filtered := e.executeSubscriptionEvent(ctx, subscriberID, subscriptionType, fieldDef, cf, event, variables, document)
			if filtered {
				continue
			}
			select {
			case out <- resp:
				delivered++
			case <-ctx.Done():
				return
			}
		}
	}
}

// executeSubscriptionEvent runs the subscription's selection against a single
// upstream event. Each event gets a fresh error collector and data bag, so a
// failure in one event never taints the next.
func (e *Executor) executeSubscriptionEvent(
	ctx context.Context,
	subscriberID string,
	subscriptionType *schema.Type,
	fieldDef *schema.Field,
	cf collectedField,
	event any,
	variables map[string]any,
	document *language.QueryDocument,
) (*Response, bool) {
	started := time.Now()
	ectx := newExecContext(e.schema, document, variables)
	path := gqlerr.Path{}.Append(cf.ResponseName)

	args, _ := coerceArgumentValues(ctx, ectx, fieldDef, cf.Fields[0].Arguments, path)

	resolved, err := invokeResolver(ctx, ectx, fieldDef, event, args, path)
	if errors.Is(err, ErrEventFiltered) {
		eventbus.Publish(ctx, events.SubscriptionEvent{
			SubscriberID: subscriberID,
			Field:        fieldDef.Name,
			Filtered:     true,
			Duration:     time.Since(started),
		})
		return nil, true
	}

	resp := &Response{HasData: true}
	if err != nil {
		ectx.fieldError(ctx, path, err)
		if !schema.IsNonNull(fieldDef.Type) {
			m := newEventResult(cf.ResponseName, nil)
			resp.Data = m
		}
	} else {
		completed, violated := completeValue(ctx, ectx, fieldDef.Type, cf.Fields, resolved, path)
		if !violated {
			resp.Data = newEventResult(cf.ResponseName, completed)
		}
	}
	resp.Errors = ectx.errs.Drain()

	fieldErrs := make([]error, 0, len(resp.Errors))
	for _, ge := range resp.Errors {
		fieldErrs = append(fieldErrs, ge)
	}
	eventbus.Publish(ctx, events.SubscriptionEvent{
		SubscriberID: subscriberID,
		Field:        fieldDef.Name,
		Errors:       fieldErrs,
		Duration:     time.Since(started),
	})
	return resp, false
}
