package isolation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessibility-eta-service/internal/adapters/oracle"
	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
	"accessibility-eta-service/internal/services"
)

const workerEnv = "ETA_ISOLATION_TEST_WORKER"

// The test binary doubles as the child process of ProcessLauncher.
func TestMain(m *testing.M) {
	switch os.Getenv(workerEnv) {
	case "ok":
		if err := ServeWorker(context.Background(), os.Stdin, os.Stdout, oracle.NewStraightLineOracle(60).Factory()); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "fail":
		factory := func(context.Context) (ports.RoutingOracle, error) {
			return nil, errors.New("cannot open osrm index")
		}
		if err := ServeWorker(context.Background(), os.Stdin, os.Stdout, factory); err != nil {
			os.Exit(3)
		}
		os.Exit(0)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func testJob() domain.AreaJob {
	ring := orb.Ring{{0, 0}, {0.1, 0}, {0.1, 0.1}, {0, 0.1}, {0, 0}}
	return domain.AreaJob{
		RunID: "run",
		Area:  domain.AdminArea{ID: "a1", Name: "Alpha", Geometry: orb.MultiPolygon{{ring}}},
		Inputs: domain.SharedInputs{
			Origins: []domain.Origin{
				{Seq: 0, Point: orb.Point{0.02, 0.02}, Properties: map[string]any{"id": "o1"}},
				{Seq: 1, Point: orb.Point{0.08, 0.08}, Properties: map[string]any{"id": "o2"}},
			},
			POIs: domain.POIsByType{"clinic": {{Seq: 0, Type: "clinic", Point: orb.Point{0.05, 0.05}}}},
		},
		Config: domain.EngineConfig{GridSizeKm: 30, MaxTimeSeconds: 900, MaxSpeedKmh: 60},
	}
}

func drain(h ports.AreaHandle) []domain.WorkerMessage {
	var msgs []domain.WorkerMessage
	for m := range h.Messages() {
		msgs = append(msgs, m)
	}
	return msgs
}

func TestCodecRoundTripKeepsInfinity(t *testing.T) {
	var buf bytes.Buffer
	w := NewMessageWriter(&buf)

	rec := domain.ETARecord{
		Properties: map[string]any{"id": "o1"},
		Lat:        1, Lon: 2,
		ETA: map[string]float64{"clinic": 175.5, "school": math.Inf(1)},
	}
	require.NoError(t, w.Write(domain.SquareCountMessage("a1", 4)))
	require.NoError(t, w.Write(domain.DoneMessage("a1", []domain.ETARecord{rec})))

	r := NewMessageReader(&buf)
	m, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSquareCount, m.Type)
	assert.Equal(t, 4, m.Count)

	m, err = r.Read()
	require.NoError(t, err)
	require.Len(t, m.Records, 1)
	assert.Equal(t, 175.5, m.Records[0].ETA["clinic"])
	assert.True(t, math.IsInf(m.Records[0].ETA["school"], 1))

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestJobRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	job := testJob()
	require.NoError(t, EncodeJob(&buf, job))

	got, err := DecodeJob(&buf)
	require.NoError(t, err)
	assert.Equal(t, job.Area.Geometry, got.Area.Geometry)
	assert.Equal(t, job.Inputs.Origins[1].Point, got.Inputs.Origins[1].Point)
	assert.Equal(t, job.Config, got.Config)
}

func TestInProcessLauncherCompletes(t *testing.T) {
	l := &InProcessLauncher{Factory: oracle.NewStraightLineOracle(60).Factory()}
	h, err := l.Launch(context.Background(), testJob())
	require.NoError(t, err)

	msgs := drain(h)
	require.NoError(t, h.Wait())
	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.MessageDone, last.Type)
	assert.Len(t, last.Records, 2)
}

func TestInProcessLauncherKill(t *testing.T) {
	stub := oracle.NewStraightLineOracle(60)
	entered := make(chan struct{}, 1)
	stub.Hook = func(ctx context.Context, op string) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}

	l := &InProcessLauncher{Factory: stub.Factory()}
	h, err := l.Launch(context.Background(), testJob())
	require.NoError(t, err)

	<-entered
	h.Kill()
	msgs := drain(h)

	var wf *domain.WorkerFailure
	require.True(t, errors.As(h.Wait(), &wf))
	assert.Equal(t, "a1", wf.AreaID)
	assert.Equal(t, domain.MessageError, msgs[len(msgs)-1].Type)
}

func TestInProcessRegionFailureAbandonsStuckSibling(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	started := make(chan struct{})
	var startOnce sync.Once

	stub := oracle.NewStraightLineOracle(60)
	stub.Hook = func(ctx context.Context, op string) error {
		switch ctx.Value(obs.AreaIDKey) {
		case "stuck":
			startOnce.Do(func() { close(started) })
			// Blocks without watching ctx, like a hung oracle call.
			<-release
		case "bad":
			<-started
			if op == "table" {
				return errors.New("table exploded")
			}
		}
		return nil
	}

	job := testJob()
	bad, stuck := job.Area, job.Area
	bad.ID, stuck.ID = "bad", "stuck"
	cfg := job.Config
	cfg.AreaConcurrency = 2

	orch := &services.RegionOrchestrator{Launcher: &InProcessLauncher{Factory: stub.Factory()}, Config: cfg}

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), "run", []domain.AdminArea{bad, stuck}, job.Inputs)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("region failure waited for a stuck sibling")
	}

	var wf *domain.WorkerFailure
	require.True(t, errors.As(err, &wf))
	assert.Equal(t, "bad", wf.AreaID)
	assert.Contains(t, wf.Message, "table exploded")
}

func TestServeWorker(t *testing.T) {
	var in, out bytes.Buffer
	require.NoError(t, EncodeJob(&in, testJob()))

	err := ServeWorker(context.Background(), &in, &out, oracle.NewStraightLineOracle(60).Factory())
	require.NoError(t, err)

	r := NewMessageReader(&out)
	var types []domain.MessageType
	for {
		m, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, m.Type)
	}
	assert.Contains(t, types, domain.MessageSquareCount)
	assert.Equal(t, domain.MessageDone, types[len(types)-1])
}

func selfLauncher(mode string) *ProcessLauncher {
	return &ProcessLauncher{
		Executable: os.Args[0],
		Env:        append(os.Environ(), fmt.Sprintf("%s=%s", workerEnv, mode)),
		Stderr:     io.Discard,
	}
}

func TestProcessLauncherCompletes(t *testing.T) {
	h, err := selfLauncher("ok").Launch(context.Background(), testJob())
	require.NoError(t, err)

	msgs := drain(h)
	require.NoError(t, h.Wait())
	require.NotEmpty(t, msgs)

	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.MessageDone, last.Type)
	require.Len(t, last.Records, 2)
	assert.Equal(t, "o1", last.Records[0].Properties["id"])
}

func TestProcessLauncherNonZeroExit(t *testing.T) {
	h, err := selfLauncher("fail").Launch(context.Background(), testJob())
	require.NoError(t, err)
	drain(h)

	var wf *domain.WorkerFailure
	require.True(t, errors.As(h.Wait(), &wf))
	assert.Equal(t, 3, wf.ExitCode)
	assert.Contains(t, wf.Message, "cannot open osrm index")
	// Not a panic or an oracle failure: no stack to report.
	assert.Empty(t, wf.Stack)
}

func TestProcessLauncherKill(t *testing.T) {
	h, err := selfLauncher("hang").Launch(context.Background(), testJob())
	require.NoError(t, err)

	h.Kill()
	drain(h)

	var wf *domain.WorkerFailure
	require.True(t, errors.As(h.Wait(), &wf))
	assert.Contains(t, wf.Message, "killed")
	assert.NotZero(t, wf.ExitCode)
}
