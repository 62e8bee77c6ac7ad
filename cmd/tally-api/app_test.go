package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/TruckTally/config"
	"github.com/BearBump/TruckTally/internal/api/tallyhttp"
	"github.com/BearBump/TruckTally/internal/broker/messages"
	"github.com/BearBump/TruckTally/internal/cache"
	cachemocks "github.com/BearBump/TruckTally/internal/cache/mocks"
	"github.com/BearBump/TruckTally/internal/services/feedback"
	feedbackmocks "github.com/BearBump/TruckTally/internal/services/feedback/mocks"
	"github.com/BearBump/TruckTally/internal/services/inspections"
	inspectionsmocks "github.com/BearBump/TruckTally/internal/services/inspections/mocks"
	"github.com/BearBump/TruckTally/internal/services/reports"
	"github.com/BearBump/TruckTally/internal/services/trucks"
	trucksmocks "github.com/BearBump/TruckTally/internal/services/trucks/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	messages [][]byte
	handled  chan error
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, m := range c.messages {
		c.handled <- handler(nil, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestAPI(t *testing.T, bc cache.BytesCache) (*tallyhttp.API, *trucks.Service) {
	t.Helper()
	svc := trucks.New(&trucksmocks.MockRepository{}, bc, time.Minute)
	api := tallyhttp.New(
		svc,
		inspections.New(&inspectionsmocks.MockRepository{}),
		reports.New(svc, nil, 0),
		feedback.New(&feedbackmocks.MockRepository{}),
	)
	return api, svc
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func TestRunTallyAPI_ServesSwaggerAndRoutes(t *testing.T) {
	api, svc := newTestAPI(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := tallyAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
		onListen:    func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runTallyAPI(ctx, opts, api, svc, nil) }()
	addr := <-addrCh

	// сервер стартует в горутине, даём ему пару попыток
	var resp *http.Response
	var err error
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/swagger.json")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/api/v1/inspections")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting api to stop")
	}
}

func TestRunTallyAPI_SwaggerRequired(t *testing.T) {
	api, svc := newTestAPI(t, nil)

	err := runTallyAPI(context.Background(), tallyAPIOpts{httpAddr: "127.0.0.1:0"}, api, svc, nil)
	require.ErrorContains(t, err, "swaggerPath")

	err = runTallyAPI(context.Background(), tallyAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: "/nope/swagger.json"}, api, svc, nil)
	require.ErrorContains(t, err, "swagger file not found")
}

func TestRunTallyAPI_ConsumerInvalidatesBoard(t *testing.T) {
	bc := &cachemocks.MockBytesCache{}
	bc.On("Delete", mock.Anything, []string{"inspection:9:board"}).Return(nil).Once()
	api, svc := newTestAPI(t, bc)

	msg, err := json.Marshal(messages.TruckRecordChanged{EventID: "e1", InspectionID: 9, RecordID: 3, Kind: "created"})
	require.NoError(t, err)
	cons := &fakeConsumer{messages: [][]byte{msg, []byte("{broken")}, handled: make(chan error, 2)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTallyAPI(ctx, tallyAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: writeSwagger(t)}, api, svc, cons)
	}()

	require.NoError(t, <-cons.handled)
	require.Error(t, <-cons.handled)
	bc.AssertExpectations(t)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestAPIOptsFromConfig_Defaults(t *testing.T) {
	opts := apiOptsFromConfig(&config.Config{})
	require.Equal(t, ":8080", opts.httpAddr)
	require.Equal(t, "truck-record.changed", opts.topic)
	require.Equal(t, "tally-api", opts.consumerGroup)
	require.Equal(t, 30*time.Second, boardTTL(&config.Config{}))
	require.Equal(t, 10, exportLimit(&config.Config{}))

	cfg := &config.Config{
		Kafka: config.KafkaConfig{TruckRecordChangedTopicName: "t"},
		Tally: config.TallyConfig{HTTPAddr: ":9000", KafkaConsumerGroup: "g", StatusBoardTTLSeconds: 5, ExportRateLimitPerMinute: 3},
	}
	opts = apiOptsFromConfig(cfg)
	require.Equal(t, tallyAPIOpts{httpAddr: ":9000", topic: "t", consumerGroup: "g"}, opts)
	require.Equal(t, 5*time.Second, boardTTL(cfg))
	require.Equal(t, 3, exportLimit(cfg))
}
