package kafka

import (
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicBookingEvents carries all ticket state transitions.
const TopicBookingEvents = "booking-events"

// EnsureTopicsExist creates Kafka topics if they don't already exist.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		err = controllerConn.CreateTopics(topicConfigs...)
		if err != nil {
			if err.Error() == "kafka server: topic already exists" {
				continue
			}
			log.Printf("Error creating topic %s: %v", topic, err)
			// Keep trying the remaining topics.
		}
	}

	// Give the broker a moment to settle new topics.
	time.Sleep(1 * time.Second)
	return nil
}
