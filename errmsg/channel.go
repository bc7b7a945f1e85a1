// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package errmsg holds the single user visible error message.
package errmsg

import (
	"sync"
	"time"

	"github.com/vechain/stakesync/co"
)

// Message is a human readable error. A zero Expiry means it stays until replaced.
type Message struct {
	Text   string    `json:"text"`
	Expiry time.Time `json:"expiry,omitzero"`
}

// Channel holds at most one message and at most one expiry timer.
type Channel struct {
	mu      sync.Mutex
	msg     Message
	timer   *time.Timer
	gen     uint64 // bumped on every change, guards late timer callbacks
	changed co.Signal
}

// Set replaces the current message and cancels its pending expiry. When
// expiry > 0 the new message is cleared after that duration. An empty text
// clears the channel.
func (c *Channel) Set(text string, expiry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(text, expiry)
}

func (c *Channel) set(text string, expiry time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.msg = Message{Text: text}

	if text != "" && expiry > 0 {
		c.msg.Expiry = time.Now().Add(expiry)
		gen := c.gen
		c.timer = time.AfterFunc(expiry, func() { c.expire(gen) })
	}
	c.changed.Broadcast()
}

func (c *Channel) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a newer message owns the channel
	if gen != c.gen {
		return
	}
	c.set("", 0)
}

// Clear removes the current message.
func (c *Channel) Clear() {
	c.Set("", 0)
}

// ClearIf clears the message only when its text equals text. It reports
// whether the message was cleared.
func (c *Channel) ClearIf(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.msg.Text == "" || c.msg.Text != text {
		return false
	}
	c.set("", 0)
	return true
}

// Message returns the live message, if any.
func (c *Channel) Message() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.msg, c.msg.Text != ""
}

// Changes returns a waiter notified whenever the message changes.
func (c *Channel) Changes() co.Waiter {
	return c.changed.NewWaiter()
}
