package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestReaderConfigDefaults(t *testing.T) {
	rc := readerConfig(Config{Brokers: []string{"b:9092"}, GroupID: "g", Topics: []string{"a", "b"}})

	require.Equal(t, []string{"a", "b"}, rc.GroupTopics)
	require.Empty(t, rc.Topic)
	require.Equal(t, 1, rc.MinBytes)
	require.Equal(t, 10<<20, rc.MaxBytes)
	require.Equal(t, time.Second, rc.CommitInterval)
	require.Equal(t, 250*time.Millisecond, rc.MaxWait)
	require.Equal(t, kafka.LastOffset, rc.StartOffset)
}

func TestReaderConfigSingleTopic(t *testing.T) {
	rc := readerConfig(Config{GroupID: "g", Topics: []string{"only"}, MaxWait: time.Second})

	require.Equal(t, "only", rc.Topic)
	require.Nil(t, rc.GroupTopics)
	require.Equal(t, time.Second, rc.MaxWait)
}
