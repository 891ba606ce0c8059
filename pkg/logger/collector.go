package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const collectorPublishTimeout = 30 * time.Second

// Publisher ships aggregated log batches. The queue service satisfies this.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush cadence
	CountThreshold int           // unique entries that force an early flush
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one deduplicated log line with its occurrence
// window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates repeated entries by content hash and flushes
// batches to the publisher, either on a timer or when the map grows past
// the threshold.
type LogCollector struct {
	cfg     *CollectionConfig
	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		cfg:     cfg,
		entries: make(map[string]*AggregatedLogEntry),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	entry := c.entries[key]
	if entry == nil {
		entry = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			FirstSeen: now,
		}
		c.entries[key] = entry
	}
	entry.Count++
	entry.LastSeen = now
	full := len(c.entries) >= c.cfg.CountThreshold
	c.mu.Unlock()

	if full {
		c.flush()
	}
}

// Close stops the flush loop after a final synchronous flush.
func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *LogCollector) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.ctx.Done():
			// The final batch ships before run returns, so Close
			// doesn't drop it.
			if batch := c.drain(); len(batch) != 0 {
				c.publish(batch)
			}
			return
		}
	}
}

// flush ships the current batch detached, so a slow broker cannot stall
// logging.
func (c *LogCollector) flush() {
	batch := c.drain()
	if len(batch) == 0 {
		return
	}
	go c.publish(batch)
}

// drain swaps out the aggregation map and returns its contents.
func (c *LogCollector) drain() []AggregatedLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return nil
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		batch = append(batch, *entry)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	return batch
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), collectorPublishTimeout)
	defer cancel()

	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "ship aggregated logs: %v\n", err)
	}
}

// fingerprint hashes the identity of a log line. Entries with equal
// level, message, caller and fields collapse into one aggregate.
func fingerprint(level, message string, fields map[string]interface{}, caller string) string {
	h := sha256.New()
	io.WriteString(h, level)
	io.WriteString(h, "\x00")
	io.WriteString(h, message)
	io.WriteString(h, "\x00")
	io.WriteString(h, caller)
	io.WriteString(h, "\x00")
	if body, err := json.Marshal(fields); err == nil {
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil))
}
