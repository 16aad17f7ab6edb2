package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Channel is the PostgreSQL NOTIFY channel for deletion events.
const Channel = "entity_deleted"

// PGBridge fans deletion events out to other instances through
// LISTEN/NOTIFY. Events carry the publishing instance id so an instance
// ignores its own notifications.
type PGBridge struct {
	db     *gorm.DB
	dsn    string
	origin string
	bus    *Bus
}

// NewPGBridge wires a bridge between bus and the database at dsn.
func NewPGBridge(db *gorm.DB, dsn string, bus *Bus) *PGBridge {
	return &PGBridge{db: db, dsn: dsn, origin: uuid.NewString(), bus: bus}
}

// Origin returns this instance's id.
func (b *PGBridge) Origin() string {
	return b.origin
}

// Broadcast sends evt with pg_notify.
func (b *PGBridge) Broadcast(ctx context.Context, evt EntityDeleted) error {
	evt.Origin = b.origin
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", Channel, string(payload)).Error; err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Listen blocks until ctx is done, delivering events published by other
// instances to the local bus.
func (b *PGBridge) Listen(ctx context.Context) error {
	listener := pq.NewListener(b.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("⚠️ Event listener: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	log.Printf("✅ Listening for %s events", Channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; events sent meanwhile are lost and
			// left to the periodic sweep.
			if n == nil {
				continue
			}
			b.handle(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go listener.Ping()
		}
	}
}

func (b *PGBridge) handle(ctx context.Context, payload string) {
	evt, ok := b.decode(payload)
	if !ok {
		return
	}
	b.bus.Deliver(ctx, evt)
}

func (b *PGBridge) decode(payload string) (EntityDeleted, bool) {
	var evt EntityDeleted
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		log.Printf("⚠️ Dropping malformed %s payload: %v", Channel, err)
		return evt, false
	}
	if evt.Origin == b.origin {
		return evt, false
	}
	return evt, true
}
