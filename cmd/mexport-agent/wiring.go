// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"mexport/internal/collectors"
	"mexport/internal/encode"
	"mexport/internal/pipeline"
	"mexport/internal/pipeline/cardinality"
	"mexport/pkg/metric"
)

// snapshotSender is the common shape every push backend is adapted to,
// letting exportSink treat InfluxDB, CloudWatch, JSON Lines, and Prometheus
// uniformly despite their differing native interfaces.
type snapshotSender interface {
	Send(ctx context.Context, snapshots []metric.Snapshot, now time.Time) error
}

// encoderTransportSender adapts an Encoder+Transport pair (InfluxDB,
// Prometheus) to snapshotSender.
type encoderTransportSender struct {
	name      string
	encoder   encode.Encoder
	transport encode.Transport
}

func (s encoderTransportSender) Send(ctx context.Context, snapshots []metric.Snapshot, now time.Time) error {
	encoded, err := s.encoder.Encode(snapshots, now)
	if err != nil {
		return &pipeline.FatalError{Err: fmt.Errorf("%s: encode: %w", s.name, err)}
	}
	if err := s.transport.Send(ctx, encoded); err != nil {
		return fmt.Errorf("%s: send: %w", s.name, err)
	}
	return nil
}

// cloudWatchSender adapts CloudWatchTransport's typed SendSnapshots method to
// snapshotSender.
type cloudWatchSender struct {
	transport *encode.CloudWatchTransport
}

func (s cloudWatchSender) Send(ctx context.Context, snapshots []metric.Snapshot, now time.Time) error {
	return s.transport.SendSnapshots(ctx, snapshots, now)
}

// pushTransport POSTs an already-encoded batch to a fixed URL, accepting any
// 2xx response. Used for the Prometheus text sink, which — unlike InfluxDB's
// v2 write API — has no single standard status code across push-gateway
// implementations.
type pushTransport struct {
	url    string
	client *http.Client
}

func newPushTransport(url string) *pushTransport {
	return &pushTransport{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *pushTransport) Send(ctx context.Context, batch encode.EncodedBatch) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(batch.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", batch.ContentType)
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("prometheus push: unexpected status %s", resp.Status)
	}
	return nil
}

type backendConfig struct {
	influxAddr   string
	influxOrg    string
	influxBucket string
	influxToken  string
	influxGzip   bool

	cloudWatchNamespace string
	cloudWatchRegion    string

	jsonLinesPath string

	prometheusPushURL string
}

// buildSenders constructs one snapshotSender per backend named in the
// comma-separated selection string. A backend missing its required
// configuration is skipped with a warning rather than aborting startup.
func buildSenders(selection string, cfg backendConfig, log logrus.FieldLogger) []snapshotSender {
	var out []snapshotSender
	for _, name := range splitNonEmpty(selection) {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "influx", "influxdb":
			if cfg.influxAddr == "" {
				log.Warn("backend influx selected but influx_addr is empty; skipping")
				continue
			}
			enc := encode.NewInfluxEncoder(encode.InfluxOptions{
				BaseAddress: cfg.influxAddr,
				Org:         cfg.influxOrg,
				Bucket:      cfg.influxBucket,
				Token:       cfg.influxToken,
				EnableGzip:  cfg.influxGzip,
			})
			out = append(out, encoderTransportSender{name: "influx", encoder: enc, transport: encode.NewInfluxTransport()})
		case "cloudwatch":
			if cfg.cloudWatchNamespace == "" {
				log.Warn("backend cloudwatch selected but cloudwatch_namespace is empty; skipping")
				continue
			}
			sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.cloudWatchRegion)})
			if err != nil {
				log.WithError(err).Warn("failed to create AWS session; skipping cloudwatch backend")
				continue
			}
			client := cloudwatch.New(sess)
			enc := encode.NewCloudWatchEncoder(encode.CloudWatchOptions{Namespace: cfg.cloudWatchNamespace, FlattenMultiSample: true, ApproximateSumWhenMissing: true})
			out = append(out, cloudWatchSender{transport: encode.NewCloudWatchTransport(client, enc, cfg.cloudWatchNamespace)})
		case "jsonlines":
			if cfg.jsonLinesPath == "" {
				log.Warn("backend jsonlines selected but jsonlines_path is empty; skipping")
				continue
			}
			sink, err := encode.NewJSONLinesFileSink(cfg.jsonLinesPath)
			if err != nil {
				log.WithError(err).Warn("failed to open jsonlines sink; skipping")
				continue
			}
			out = append(out, sink)
		case "prometheus":
			if cfg.prometheusPushURL == "" {
				log.Warn("backend prometheus selected but prometheus_push_url is empty; skipping")
				continue
			}
			out = append(out, encoderTransportSender{
				name:      "prometheus",
				encoder:   encode.NewPrometheusEncoder(),
				transport: newPushTransport(cfg.prometheusPushURL),
			})
		default:
			log.WithField("backend", name).Warn("unknown backend requested; ignoring")
		}
	}
	return out
}

// exportSink is the pipeline.Sink the Flusher drains into: it runs every
// batch through the cardinality guard, then fans it out to every configured
// backend sender with independent retry.
type exportSink struct {
	guard      *cardinality.Guard
	senders    []snapshotSender
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	log        logrus.FieldLogger
	errors     *prometheus.CounterVec
}

func (s *exportSink) Send(ctx context.Context, batch pipeline.Batch) error {
	items := make([]metric.Snapshot, 0, len(batch.Items))
	for _, snap := range batch.Items {
		filtered, ok := s.guard.Apply(snap)
		if !ok {
			continue
		}
		items = append(items, filtered)
	}
	if len(items) == 0 || len(s.senders) == 0 {
		return nil
	}

	var errs []error
	for _, sender := range s.senders {
		sender := sender
		err := pipeline.SendWithRetry(ctx, func(attemptCtx context.Context) error {
			return sender.Send(attemptCtx, items, time.Now().UTC())
		}, s.maxRetries, s.baseDelay, s.timeout, nil)
		if err != nil {
			s.errors.WithLabelValues("send_failed").Inc()
			s.log.WithError(err).Warn("export: backend send failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// factorySnapshotSource adapts metric.Factory to scrape.SnapshotSource.
type factorySnapshotSource struct {
	factory *metric.Factory
}

func (s factorySnapshotSource) Snapshots() []metric.Snapshot {
	var out []metric.Snapshot
	s.factory.ForEach(func(snap metric.Snapshot) { out = append(out, snap) })
	return out
}

// activeCollectors holds every collector wired up for this run, plus the
// HTTP collector singled out for use as server middleware.
type activeCollectors struct {
	http *collectors.HTTPServerCollector
	all  []collectors.Collector
}

func buildCollectors(factory *metric.Factory, hub *collectors.Hub, redisAddr, rabbitAddr, rabbitQueues, certEndpointsFlag string, log logrus.FieldLogger) activeCollectors {
	httpCollector := collectors.NewHTTPServerCollector(factory)
	wsCollector := collectors.NewWSHubCollector(factory, hub)

	active := activeCollectors{http: httpCollector, all: []collectors.Collector{httpCollector, wsCollector}}

	queues := splitNonEmpty(rabbitQueues)

	if rabbitAddr != "" {
		conn, err := amqp.Dial(rabbitAddr)
		if err != nil {
			log.WithError(err).Warn("failed to dial rabbitmq; rabbitmq/mq collectors disabled")
		} else {
			ch, err := conn.Channel()
			if err != nil {
				log.WithError(err).Warn("failed to open rabbitmq channel; rabbitmq/mq collectors disabled")
			} else {
				inspector := collectors.NewRabbitMQInspector(ch)
				active.all = append(active.all, collectors.NewRabbitMQCollector(factory, inspector, queues))
				active.all = append(active.all, collectors.NewMQCollector(factory, queues, func(ctx context.Context, queue string) (int64, error) {
					q, err := inspector.QueueInspect(queue)
					if err != nil {
						return 0, err
					}
					return int64(q.Messages), nil
				}))
			}
		}
	}

	if redisAddr != "" {
		active.all = append(active.all, collectors.NewRedisCollector(factory, collectors.NewRedisClient(redisAddr)))
	}

	if endpoints := parseCertEndpoints(certEndpointsFlag); len(endpoints) > 0 {
		active.all = append(active.all, collectors.NewCertExpiryCollector(factory, endpoints, nil))
	}

	return active
}

// parseCertEndpoints parses a comma-separated list of label=host:port pairs.
func parseCertEndpoints(flagValue string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitNonEmpty(flagValue) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		label := strings.TrimSpace(parts[0])
		addr := strings.TrimSpace(parts[1])
		if label == "" || addr == "" {
			continue
		}
		out[label] = addr
	}
	return out
}

// sampleLoop periodically refreshes every collector's instrument state and
// pushes a full snapshot of the factory into buffer, until stop is closed.
func sampleLoop(factory *metric.Factory, buffer *pipeline.Buffer, active activeCollectors, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			for _, c := range active.all {
				c.Collect(ctx)
			}
			cancel()
			factory.ForEach(buffer.Submit)
		case <-stop:
			return
		}
	}
}

// httpServerMiddleware wraps handler with the request in-flight/total/latency
// bookkeeping the HTTP server collector exposes.
func httpServerMiddleware(c *collectors.HTTPServerCollector, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		end := c.Begin()
		defer end()
		handler.ServeHTTP(w, r)
	})
}
