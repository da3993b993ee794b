package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/flightlog/internal/common"
	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/logdata"
)

const sampleCSV = "Time,GPS,VFAS(V),Current(A),LiPo1(V),LiPo2(V)\n" +
	"10:00:00,47.0000 8.5000,12.0,2.0,3.7,3.7\n" +
	"10:00:01,47.0010 8.5010,11.5,3.0,3.8,3.6\n"

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSVEndToEnd(t *testing.T) {
	loader := NewLoader(config.Default())
	path := writeTemp(t, "flight.csv", sampleCSV)

	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, logdata.FormatTextCsv, ds.Meta.Format)
	assert.Equal(t, path, ds.Meta.SourcePath)
	assert.Equal(t, int64(len(sampleCSV)), ds.Meta.SizeBytes)

	// Normalized channels.
	require.NotNil(t, ds.Channel("POWER.VFAS (V)"))
	require.NotNil(t, ds.Channel("GPS.Latitude"))

	// Derived channels ride along.
	power := ds.Channel("POWER.Power (W)")
	require.NotNil(t, power)
	assert.Equal(t, logdata.OriginDerived, power.Origin)
	require.Len(t, power.Samples, 2)
	assert.InDelta(t, 24.0, power.Samples[0].Value, 1e-9)
	assert.InDelta(t, 34.5, power.Samples[1].Value, 1e-9)

	total := ds.Channel("POWER.LiPo.Total (V)")
	require.NotNil(t, total)
	assert.InDelta(t, 7.4, total.Samples[0].Value, 1e-9)

	require.NotNil(t, ds.Channel("GPS.X (m)"))
	require.NotNil(t, ds.Channel("GPS.Y (m)"))

	assert.InDelta(t, 1.0, ds.Meta.Duration, 1e-9)
	assert.Greater(t, ds.Meta.SampleRate, 0.0)
}

func TestLoadDeterministic(t *testing.T) {
	loader := NewLoader(config.Default())
	path := writeTemp(t, "flight.csv", sampleCSV)

	a, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	b, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, a.ChannelNames(), b.ChannelNames())
	for _, name := range a.ChannelNames() {
		ca, cb := a.Channel(name), b.Channel(name)
		require.Len(t, cb.Samples, len(ca.Samples), name)
		for i := range ca.Samples {
			assert.Equal(t, ca.Samples[i].Time, cb.Samples[i].Time, name)
			if ca.Samples[i].Valid() || cb.Samples[i].Valid() {
				assert.Equal(t, ca.Samples[i].Value, cb.Samples[i].Value, name)
			}
		}
	}
}

func TestLoadUnrecognizedFormat(t *testing.T) {
	loader := NewLoader(config.Default())
	path := writeTemp(t, "notes.xyz", "plain prose without any delimiter\n")

	_, err := loader.Load(context.Background(), path)
	assert.ErrorIs(t, err, logdata.ErrUnrecognizedFormat)
}

func TestLoadEmptyFileYieldsEmptyResult(t *testing.T) {
	loader := NewLoader(config.Default())
	path := writeTemp(t, "empty.csv", "Time,RxBt(V)\n")

	_, err := loader.Load(context.Background(), path)
	assert.ErrorIs(t, err, logdata.ErrEmptyResult)
}

func TestLoadAllInvalidYieldsEmptyResult(t *testing.T) {
	loader := NewLoader(config.Default())
	path := writeTemp(t, "blank.csv", "Time,RxBt(V)\n10:00:00,n/a\n10:00:01,---\n")

	_, err := loader.Load(context.Background(), path)
	assert.ErrorIs(t, err, logdata.ErrEmptyResult)
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(config.Default())
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoadCancelledContext(t *testing.T) {
	loader := NewLoader(config.Default())
	path := writeTemp(t, "flight.csv", sampleCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadPopulatesSharedMetrics(t *testing.T) {
	loader := NewLoader(config.Default())
	m := common.NewMetrics()
	loader.Metrics = m
	path := writeTemp(t, "flight.csv", sampleCSV)

	_, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(len(sampleCSV)), snap.Bytes)
	assert.Equal(t, int64(len(sampleCSV)), snap.TotalBytes)
	assert.Greater(t, snap.Records, int64(0))
	assert.Equal(t, 1.0, snap.Completion())
}

func TestManagerSwapSemantics(t *testing.T) {
	mgr := NewManager(NewLoader(config.Default()))
	require.Nil(t, mgr.Current())

	path := writeTemp(t, "flight.csv", sampleCSV)
	ds, err := mgr.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, ds, mgr.Current())

	// A failed load must leave the published dataset untouched.
	_, err = mgr.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Same(t, ds, mgr.Current())

	// A second successful load replaces the snapshot wholesale.
	ds2, err := mgr.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, ds2, mgr.Current())
	assert.NotSame(t, ds, ds2)
}
