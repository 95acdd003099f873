// SPDX-License-Identifier: GPL-3.0-only

package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accountd/commons"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeclareQueue declares the durable notification queue on ch.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(name, true, false, false, false, nil)
}

// QueueEmailClient publishes data as a persistent JSON message for the mail worker.
func QueueEmailClient(data NotificationData) error {
	cfg := commons.GetConfig()
	if data.To == "" {
		return fmt.Errorf("'to' field is required")
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer ch.Close()

	queue, err := DeclareQueue(ch, cfg.NotificationQueue)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ch.PublishWithContext(ctx, "", queue.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	commons.Logger.Debugf("Notification queued on %s", queue.Name)
	return nil
}

// DecodeQueued parses a message body published by QueueEmailClient.
func DecodeQueued(body []byte) (NotificationData, error) {
	var data NotificationData
	if err := json.Unmarshal(body, &data); err != nil {
		return data, fmt.Errorf("decode notification: %w", err)
	}
	if data.To == "" || data.Template == "" {
		return data, fmt.Errorf("queued notification is missing recipient or template")
	}
	return data, nil
}
