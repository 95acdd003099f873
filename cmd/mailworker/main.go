// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"accountd/commons"
	"accountd/metrics"
	"accountd/notifications"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	queue    string
	conn     *amqp.Connection
	channel  *amqp.Channel
	deliver  func(notifications.NotificationData) error
	stopChan chan struct{}
}

func NewConsumer(url, queue string) (*Consumer, error) {
	c := &Consumer{
		queue:    queue,
		deliver:  notifications.SMTPClient,
		stopChan: make(chan struct{}),
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}
	c.channel = ch

	if err := ch.Qos(1, 0, false); err != nil {
		c.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	q, err := notifications.DeclareQueue(ch, queue)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	c.queue = q.Name

	commons.Logger.Infof("Queue ready: %s", q.Name)
	return c, nil
}

func (c *Consumer) Start() error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					commons.Logger.Warn("Message channel closed")
					return
				}
				c.handleMessage(msg)
			case <-c.stopChan:
				commons.Logger.Info("Stop signal received")
				return
			}
		}
	}()
	return nil
}

// handleMessage sends one queued email. Undecodable messages are dropped;
// failed sends are requeued once.
func (c *Consumer) handleMessage(msg amqp.Delivery) {
	data, err := notifications.DecodeQueued(msg.Body)
	if err != nil {
		commons.Logger.Errorf("Dropping message: %v", err)
		if err := msg.Nack(false, false); err != nil {
			commons.Logger.Errorf("Nack failed: %v", err)
		}
		return
	}

	err = c.deliver(data)
	metrics.NotificationOutcome(string(notifications.SMTP), err)
	if err != nil {
		commons.Logger.Errorf("Failed to send %s to %s: %v", data.Template, data.To, err)
		if err := msg.Nack(false, !msg.Redelivered); err != nil {
			commons.Logger.Errorf("Nack failed: %v", err)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		commons.Logger.Errorf("Ack failed: %v", err)
		return
	}
	commons.Logger.Debugf("Sent %s to %s", data.Template, data.To)
}

func (c *Consumer) Stop() {
	close(c.stopChan)
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func main() {
	cfg := commons.GetConfig()
	commons.InitLogger()

	consumer, err := NewConsumer(cfg.AMQPURL, cfg.NotificationQueue)
	if err != nil {
		commons.Logger.Fatalf("Consumer init failed: %v", err)
	}
	defer consumer.Close()

	if err := consumer.Start(); err != nil {
		commons.Logger.Fatalf("Consumer start failed: %v", err)
	}

	commons.Logger.Info("Mail worker is running. Press Ctrl+C to exit.")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	commons.Logger.Info("Stopping mail worker...")
	consumer.Stop()
}
