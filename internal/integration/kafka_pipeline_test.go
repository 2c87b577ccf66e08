//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metno/netcdf-ondemand/internal/adapter/kafka"
	"github.com/metno/netcdf-ondemand/internal/config"
	"github.com/metno/netcdf-ondemand/internal/domain"
	"github.com/metno/netcdf-ondemand/internal/observability"
	"github.com/metno/netcdf-ondemand/internal/pipeline"
	"github.com/metno/netcdf-ondemand/internal/store"
)

const (
	testRequestTopic = "test-conversion-requests"
	testReportTopic  = "test-conversion-reports"

	testProductName = "S2A_MSIL1C_20230615T101031_N0509_R022_T32TQM_20230615T121152"
)

// localProducer implements the three production collaborators against the
// local filesystem, so the pipeline can be exercised without a datahub or
// conversion engines.
type localProducer struct{}

func (localProducer) FetchArchive(_ context.Context, product domain.Product, destDir string) (string, error) {
	path := filepath.Join(destDir, product.ArchiveName())
	return path, os.WriteFile(path, []byte("zip-bytes"), 0o644)
}

func (localProducer) ExtractArchive(archivePath, destDir string) error {
	return os.MkdirAll(filepath.Join(destDir, filepath.Base(archivePath)+".SAFE"), 0o755)
}

func (localProducer) Convert(_ context.Context, product domain.Product, _, outDir string) (string, error) {
	path := filepath.Join(outDir, product.ArtifactName())
	return path, os.WriteFile(path, []byte("netcdf-bytes"), 0o644)
}

// receivedReport holds a deserialized message read from the report topic.
type receivedReport struct {
	Report  domain.Report
	Key     string
	Headers map[string]string
}

// readReport reads a single message from the report consumer and deserializes it.
func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) receivedReport {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from report topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rep domain.Report
	require.NoError(t, json.Unmarshal(msg.Value, &rep), "unmarshal report message")

	return receivedReport{
		Report:  rep,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func newTestConfig(t *testing.T, broker string) *config.Config {
	t.Helper()
	scratch := t.TempDir()
	return &config.Config{
		OperationalRoot:     t.TempDir(),
		ScratchRoot:         scratch,
		PoolRoot:            scratch,
		OperationalKeepDays: 90,
		ScratchKeepDays:     14,

		OnDemandTHREDDSBase:    "https://thredds.test/dodsC/NetCDF_ondemand",
		OperationalTHREDDSBase: "https://thredds.test/dodsC/NBS",

		KafkaBrokers:      []string{broker},
		KafkaRequestTopic: testRequestTopic,
		KafkaReportTopic:  testReportTopic,
		KafkaGroupID:      fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),

		MaxParallelProducts: 4,
	}
}

func newProcessor(cfg *config.Config) *pipeline.Processor {
	storeCfg := store.Config{
		OperationalRoot:     cfg.OperationalRoot,
		PoolRoot:            cfg.PoolRoot,
		OperationalKeepDays: cfg.OperationalKeepDays,
		ScratchKeepDays:     cfg.ScratchKeepDays,
		OnDemandBase:        cfg.OnDemandTHREDDSBase,
		OperationalBase:     cfg.OperationalTHREDDSBase,
	}
	producer := localProducer{}
	return pipeline.NewProcessor(storeCfg, cfg.ScratchRoot, cfg.MaxParallelProducts,
		producer, producer, producer,
		discardLogger(), observability.NewMetricsForTesting())
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor)
// and kafka.Writer (Loader) correctly round-trip through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testRequestTopic)
	createTopic(t, broker, testReportTopic)

	cfg := newTestConfig(t, broker)

	// Publish a conversion request to the request topic.
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testRequestTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	payload := fmt.Sprintf(`{"request_id":"req-1","products":[%q],"recipients":["someone@example.org"]}`, testProductName)
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("req-1"),
		Value: []byte(payload),
	}))

	// Extract via kafka.Reader.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	req, err := reader.Extract(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, []string{testProductName}, req.Products)
	assert.Equal(t, []string{"someone@example.org"}, req.Recipients)
	require.NotNil(t, req.Commit, "commit callback should be set")
	require.NoError(t, req.Commit(ctx))

	// Load a report via kafka.Writer.
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	rep := newProcessor(cfg).ProcessRequest(ctx, req)
	require.NoError(t, writer.Load(ctx, rep))

	// Read it back from the report topic.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testReportTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	rr := readReport(ctx, t, consumer)
	assert.Equal(t, "req-1", rr.Key)
	assert.Equal(t, "req-1", rr.Report.RequestID)
	require.Len(t, rr.Report.Links, 1)
	assert.Contains(t, rr.Report.Links[0], testProductName)
	assert.Empty(t, rr.Report.Failures)
	assert.NotEmpty(t, rr.Headers["subject"])
	_, err = time.Parse(time.RFC3339, rr.Headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")
}

// TestPipelineEndToEnd wires the full loop (Reader, Processor, Writer) with
// real Kafka and verifies requests turn into reports.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testRequestTopic)
	createTopic(t, broker, testReportTopic)

	cfg := newTestConfig(t, broker)

	// Publish a mixed request: one producible product, one malformed name.
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testRequestTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	payload := fmt.Sprintf(`{"request_id":"req-e2e","products":[%q,"not-a-product"]}`, testProductName)
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("req-e2e"),
		Value: []byte(payload),
	}))

	// Wire up the pipeline.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, newProcessor(cfg), writer, discardLogger(), observability.NewMetricsForTesting())

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Read the report from the report topic.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testReportTopic,
		GroupID:     fmt.Sprintf("test-report-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	rr := readReport(ctx, t, consumer)

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, "req-e2e", rr.Report.RequestID)
	require.Len(t, rr.Report.Links, 1)
	assert.Contains(t, rr.Report.Links[0], ".nc.html")
	assert.Equal(t, []string{"not-a-product"}, rr.Report.Failures)
	assert.Contains(t, rr.Report.Body, "not-a-product")

	// The artifact must remain in the request's scratch directory.
	assert.FileExists(t, filepath.Join(cfg.ScratchRoot, "req-e2e", testProductName+".nc"))
}

// TestPipelinePoisonMessage verifies that an undecodable request is skipped
// and the pipeline keeps processing subsequent requests.
func TestPipelinePoisonMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testRequestTopic)
	createTopic(t, broker, testReportTopic)

	cfg := newTestConfig(t, broker)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testRequestTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	valid := fmt.Sprintf(`{"request_id":"req-good","products":[%q]}`, testProductName)
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: []byte(valid)},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, newProcessor(cfg), writer, discardLogger(), observability.NewMetricsForTesting())

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testReportTopic,
		GroupID:     fmt.Sprintf("test-report-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	rr := readReport(ctx, t, consumer)
	assert.Equal(t, "req-good", rr.Report.RequestID)

	// No report is published for the poison message.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on report topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
