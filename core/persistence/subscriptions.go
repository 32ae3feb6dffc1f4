package persistence

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (a *Adapter) emit(event OperationEvent) {
	if a.bus != nil {
		a.bus.Emit(string(event.Type), event)
	}
}

// Subscribe registers callback for events of the given type and returns the
// subscription id. It returns the empty string when the adapter has no
// event bus.
func (a *Adapter) Subscribe(event OperationEventType, callback EventCallbackFunction) string {
	if a.bus == nil {
		return ""
	}
	a.subMu.Lock()
	defer a.subMu.Unlock()

	unsubscribe := a.bus.Subscribe(string(event), func(ctx context.Context, ev OperationEvent) error {
		return callback(ctx, ev)
	})
	id := uuid.New().String()
	a.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       event,
		Unsubscribe: unsubscribe,
	}
	a.logger.Debug("registered subscription", zap.String("id", id), zap.String("event", string(event)))
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (a *Adapter) Unsubscribe(id string) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	info := a.subscriptions[id]
	if info != nil {
		info.Unsubscribe()
		delete(a.subscriptions, id)
	}
}

// Subscriptions returns the registered subscriptions ordered by event type.
func (a *Adapter) Subscriptions() []SubscriptionInfo {
	a.subMu.RLock()
	defer a.subMu.RUnlock()
	out := make([]SubscriptionInfo, 0, len(a.subscriptions))
	for _, info := range a.subscriptions {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Event != out[j].Event {
			return out[i].Event < out[j].Event
		}
		return out[i].ID < out[j].ID
	})
	return out
}
