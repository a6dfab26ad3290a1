package device

import (
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// Tag identifies the owner of message handlers and timeout entries.
// It is only ever compared, never dereferenced.
type Tag uint64

var lastTag atomic.Uint64

// NewTag issues a process-unique owner tag.
func NewTag() Tag {
	return Tag(lastTag.Add(1))
}

// MessageHandler is invoked for every dispatched message of the registered type.
type MessageHandler func(msg model.Message)

type handlerEntry struct {
	messageID model.MessageID
	callback  MessageHandler
	tag       Tag
}

// handlerTable routes messages to subscribers in registration order.
type handlerTable struct {
	mu      sync.RWMutex
	entries []handlerEntry
	logger  *zap.Logger
}

func newHandlerTable(logger *zap.Logger) *handlerTable {
	return &handlerTable{logger: logger}
}

func (h *handlerTable) register(id model.MessageID, callback MessageHandler, tag Tag) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, handlerEntry{messageID: id, callback: callback, tag: tag})
}

func (h *handlerTable) unregisterAll(tag Tag) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = lo.Reject(h.entries, func(e handlerEntry, _ int) bool {
		return e.tag == tag
	})
}

func (h *handlerTable) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// dispatch snapshots the matching handlers and calls them without holding the lock,
// so handlers may register or unregister from inside a callback.
func (h *handlerTable) dispatch(msg model.Message) {
	h.mu.RLock()
	matching := lo.Filter(h.entries, func(e handlerEntry, _ int) bool {
		return e.messageID == msg.ID
	})
	h.mu.RUnlock()

	for _, e := range matching {
		h.invoke(e, msg)
	}
}

func (h *handlerTable) invoke(e handlerEntry, msg model.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("message handler panicked",
				zap.Stringer("message", msg.ID),
				zap.Uint64("tag", uint64(e.tag)),
				zap.Any("panic", r))
		}
	}()
	e.callback(msg)
}
