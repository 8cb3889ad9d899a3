// Package firehose republishes stored download events to Kafka for
// downstream analytics. Best-effort: produce failures are logged, never
// retried, and never block the pipeline.
package firehose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"pkgstats/internal/ingest"
)

// message is the wire payload for one download event.
type message struct {
	ID                     uuid.UUID `json:"id"`
	PackageName            string    `json:"package_name"`
	PackageVersion         string    `json:"package_version"`
	DistributionType       string    `json:"distribution_type,omitempty"`
	PythonType             string    `json:"python_type,omitempty"`
	PythonRelease          string    `json:"python_release,omitempty"`
	PythonVersion          string    `json:"python_version,omitempty"`
	InstallerType          string    `json:"installer_type,omitempty"`
	InstallerVersion       string    `json:"installer_version,omitempty"`
	OperatingSystem        string    `json:"operating_system,omitempty"`
	OperatingSystemVersion string    `json:"operating_system_version,omitempty"`
	DownloadTime           time.Time `json:"download_time"`
}

// Publisher produces download events to a Kafka topic, keyed by package name
// so per-package consumers see ordered streams.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    *log.Logger
}

// New connects a producer to the given brokers.
func New(brokers []string, topic string, logger *log.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Publisher{client: client, topic: topic, log: logger}, nil
}

// EnsureTopic creates the firehose topic if it does not already exist.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicas int16) error {
	admin := kadm.NewClient(p.client)
	_, err := admin.CreateTopic(ctx, partitions, replicas, nil, p.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	return nil
}

// RecordDownload produces one event asynchronously. The produce callback
// logs delivery failures; nothing is surfaced back to the pipeline.
func (p *Publisher) RecordDownload(ctx context.Context, d ingest.Download) error {
	payload, err := encodeDownload(d)
	if err != nil {
		return fmt.Errorf("encode download: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(d.PackageName),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Printf("produce download %s to %s: %v", d.PackageName, p.topic, err)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		p.client.Close()
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}

func encodeDownload(d ingest.Download) ([]byte, error) {
	ua := d.UserAgent
	return json.Marshal(message{
		ID:                     uuid.New(),
		PackageName:            d.PackageName,
		PackageVersion:         d.PackageVersion,
		DistributionType:       d.DistributionType,
		PythonType:             ua.PythonType,
		PythonRelease:          ua.PythonRelease,
		PythonVersion:          ua.PythonVersion,
		InstallerType:          ua.InstallerType,
		InstallerVersion:       ua.InstallerVersion,
		OperatingSystem:        ua.OperatingSystem,
		OperatingSystemVersion: ua.OperatingSystemVersion,
		DownloadTime:           d.DownloadTime,
	})
}
