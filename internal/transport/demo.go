package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logdyhq/logdy-ui/internal/model"
)

var (
	demoDomains = []string{"example.com", "acme.dev", "internal.net", "api.shop.io", "cdn.assets.org"}
	demoMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
	demoPaths   = []string{"/", "/login", "/api/orders", "/api/users/42", "/healthz", "/cart/checkout"}
	demoAgents  = []string{
		"Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/124.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
		"curl/8.5.0",
	}
	demoIssuers = []string{"visa", "mastercard", "amex", "discover"}
)

// Demo is a self-contained transport that generates synthetic log
// messages, used when no backend is connected. It honors the same
// pause/resume verbs as a real transport.
type Demo struct {
	interval time.Duration
	json     bool
	rnd      *rand.Rand
	ch       chan model.Message

	mu       sync.Mutex
	running  bool
	counters Counters
}

// NewDemo creates a demo transport emitting one message per interval.
// When jsonContent is false, messages are plain separator-joined lines.
func NewDemo(interval time.Duration, jsonContent bool) *Demo {
	return &Demo{
		interval: interval,
		json:     jsonContent,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		ch:       make(chan model.Message, 64),
	}
}

// Start begins generating messages until the context is cancelled.
func (d *Demo) Start(ctx context.Context) {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(d.ch)
				return
			case <-ticker.C:
				d.emit()
			}
		}
	}()
}

func (d *Demo) emit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counters.MessageCount++
	if !d.running {
		d.counters.MessagesToTail++
		return
	}

	msg := d.generate()
	select {
	case d.ch <- msg:
		d.counters.LastDeliveredIdx = d.counters.MessageCount - 1
	default:
		// Consumer is behind; count the message as not yet tailed.
		d.counters.MessagesToTail++
	}
}

// generate builds one synthetic message in the demo field set.
func (d *Demo) generate() model.Message {
	level := "info"
	if d.rnd.Float64() > 0.5 {
		level = "error"
	}
	data := map[string]any{
		"uuid":   uuid.NewString(),
		"domain": pick(d.rnd, demoDomains),
		"ipv4": fmt.Sprintf("%d.%d.%d.%d",
			d.rnd.Intn(256), d.rnd.Intn(256), d.rnd.Intn(256), d.rnd.Intn(256)),
		"url":    "https://" + pick(d.rnd, demoDomains) + pick(d.rnd, demoPaths),
		"level":  level,
		"ua":     pick(d.rnd, demoAgents),
		"method": pick(d.rnd, demoMethods),
		"issuer": pick(d.rnd, demoIssuers),
	}

	msg := model.Message{
		ID:      uuid.NewString(),
		LogType: model.LogTypeStdout,
		Ts:      time.Now().UnixMilli(),
	}

	if d.json {
		raw, _ := json.Marshal(data)
		msg.Content = string(raw)
		msg.IsJSON = true
		msg.JSONContent = data
	} else {
		parts := []string{
			data["uuid"].(string), data["domain"].(string), data["ipv4"].(string),
			data["url"].(string), data["level"].(string), data["ua"].(string),
			data["method"].(string), data["issuer"].(string),
		}
		msg.Content = strings.Join(parts, " | ")
	}
	return msg
}

// Resume switches the demo back to delivering messages.
func (d *Demo) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	return nil
}

// ResumeFromCursor behaves like Resume; the demo generator has no
// replayable backlog.
func (d *Demo) ResumeFromCursor(ctx context.Context) error {
	return d.Resume(ctx)
}

// Pause stops delivery while the generator keeps counting.
func (d *Demo) Pause(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	return nil
}

// Status returns the delivery counters.
func (d *Demo) Status(ctx context.Context) (Counters, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters, nil
}

// Messages returns the feed channel.
func (d *Demo) Messages() <-chan model.Message {
	return d.ch
}

func pick(rnd *rand.Rand, list []string) string {
	return list[rnd.Intn(len(list))]
}
