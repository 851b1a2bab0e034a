//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/cityops-feeds-service/internal/adapter/kafka"
	"github.com/couchcryptid/cityops-feeds-service/internal/aggregator"
	"github.com/couchcryptid/cityops-feeds-service/internal/config"
	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/couchcryptid/cityops-feeds-service/internal/fetcher"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
	"github.com/couchcryptid/cityops-feeds-service/internal/parser"
)

const testSnapshotTopic = "test-snapshots"

// publishedFeed is FeedMessage without the polymorphic records.
type publishedFeed struct {
	Feed        string            `json:"feed"`
	Stage       int               `json:"stage"`
	RecordCount int               `json:"record_count"`
	ErrorKind   string            `json:"error_kind"`
	Records     []json.RawMessage `json:"records"`
	Headers     map[string]string `json:"-"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedFeed {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from snapshot topic")

	var pf publishedFeed
	require.NoError(t, json.Unmarshal(msg.Value, &pf))
	pf.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		pf.Headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, pf.Feed, string(msg.Key))
	return pf
}

// feedServer serves a small feed table; the stations path always fails.
func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /alertas", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Chuva forte (%s);Evite a orla pulalinha e encostas\n", r.URL.Query().Get("lang"))
	})
	mux.HandleFunc("GET /pluviometros", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "Tijuca;Rio de Janeiro;0,2;12,4;20;31;40;80;atual;COR;-22.93;-43.24\n"+
			"Grajaú;Rio de Janeiro;;55;;;;;atrasado;COR;-22.92;-43.26\n"+
			"linha quebrada\n")
	})
	mux.HandleFunc("GET /estagio", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "2")
	})
	mux.HandleFunc("GET /estacoes", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestSnapshotPublishedToKafka runs one real cycle over HTTP feeds and checks
// that every feed result lands on the snapshot topic.
func TestSnapshotPublishedToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSnapshotTopic)

	srv := feedServer(t)
	feeds := []domain.FeedDescriptor{
		{ID: "alerts", URL: srv.URL + "/alertas", Localized: true, Shape: domain.ShapeAlert},
		{ID: "rain", URL: srv.URL + "/pluviometros", Shape: domain.ShapeRainGauge},
		{ID: "stage", URL: srv.URL + "/estagio", Shape: domain.ShapeOperationalStage},
		{ID: "stations", URL: srv.URL + "/estacoes", Shape: domain.ShapeWeatherStation},
	}

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSnapshotTopic: testSnapshotTopic}
	publisher := kafka.NewSnapshotPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	coord, err := aggregator.New(feeds,
		fetcher.New("cityops-integration", discardLogger()),
		parser.New(srv.URL),
		discardLogger(),
		observability.NewMetricsForTesting(),
		aggregator.Options{FeedTimeout: 5 * time.Second, Locale: domain.LocaleEnglish, Publisher: publisher},
	)
	require.NoError(t, err)
	t.Cleanup(coord.Close)

	snap := coord.RunCycle(ctx)
	require.Equal(t, []domain.FeedID{"stations"}, snap.Failed())
	assert.Equal(t, 2, snap.Stage())
	require.Len(t, snap.Alerts(), 1)
	assert.Equal(t, "Chuva forte (en)", snap.Alerts()[0].Name)
	assert.Equal(t, "Evite a orla \n e encostas", snap.Alerts()[0].Message)
	assert.Equal(t, domain.SceneRainyDay, domain.ClassifyScene(snap, time.Date(2026, 2, 1, 14, 0, 0, 0, time.UTC)))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSnapshotTopic,
		GroupID:     fmt.Sprintf("test-snapshots-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]publishedFeed{}
	for len(received) < len(feeds) {
		pf := readPublished(ctx, t, consumer)
		received[pf.Feed] = pf
	}

	rain := received["rain"]
	assert.Equal(t, 2, rain.RecordCount, "malformed line dropped")
	assert.Len(t, rain.Records, 2)
	assert.Equal(t, 2, rain.Stage)

	stations := received["stations"]
	assert.Equal(t, "invalid_status", stations.ErrorKind)
	assert.Equal(t, "invalid_status", stations.Headers["error_kind"])
	assert.Empty(t, stations.Records)

	for id, pf := range received {
		_, err := time.Parse(time.RFC3339, pf.Headers["fetched_at"])
		assert.NoError(t, err, id)
		assert.Equal(t, id, pf.Headers["feed"])
	}
}
