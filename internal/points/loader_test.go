package points

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ecoroute/internal/nearest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const limaCSV = "\ufeffdireccion,latitud,longitud,distrito\n" +
	"Jr. Lampa 123,-12.0464,-77.0428,Lima\n" +
	"Sin coordenada,,-77.0,Lima\n" +
	"Av. Arequipa 400,-12.0500,-77.0300,Lince\n"

func TestParseCSV_SpanishHeaders(t *testing.T) {
	recs, err := ParseCSV(strings.NewReader(limaCSV))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Jr. Lampa 123", recs[0].Label)
	assert.Equal(t, "-12.0464", recs[0].Latitude)
	assert.Equal(t, "Lima", recs[0].Group)
	assert.Equal(t, "", recs[1].Latitude)

	ix := nearest.FromRecords(recs)
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, "C-0", ix.At(0).ID)
	assert.Equal(t, "C-1", ix.At(1).ID)
	assert.Equal(t, "Lince", ix.At(1).Group)
}

func TestParseCSV_EnglishHeadersAndShortRows(t *testing.T) {
	in := "id,lng,lat,district\nA,-77.0428,-12.0464,Lima\nB,-77.03\n"

	recs, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].ID)
	assert.Equal(t, "-77.0428", recs[0].Longitude)
	assert.Equal(t, "", recs[1].Latitude)

	assert.Equal(t, 1, nearest.FromRecords(recs).Len())
}

func TestParseCSV_Empty(t *testing.T) {
	recs, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseJSON_NumbersAndStrings(t *testing.T) {
	in := `[{"id":"A","lat":-12.0464,"lng":"-77.0428","address":"Jr. Lampa"},{"Latitude":"x","Longitude":1}]`

	recs, err := ParseJSON([]byte(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "-12.0464", recs[0].Latitude)
	assert.Equal(t, "-77.0428", recs[0].Longitude)
	assert.Equal(t, "Jr. Lampa", recs[0].Label)
	assert.Equal(t, "x", recs[1].Latitude)
	assert.Equal(t, "1", recs[1].Longitude)
}

func TestParseGeoJSON(t *testing.T) {
	in := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"A","geometry":{"type":"Point","coordinates":[-77.0428,-12.0464]},"properties":{"distrito":"Lima"}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"id":"L"}}
	]}`

	recs, err := ParseGeoJSON([]byte(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].ID)
	assert.Equal(t, "-12.0464", recs[0].Latitude)
	assert.Equal(t, "-77.0428", recs[0].Longitude)
	assert.Equal(t, "Lima", recs[0].Group)
	assert.Equal(t, "", recs[1].Latitude)

	assert.Equal(t, 1, nearest.FromRecords(recs).Len())
}

func TestFileSource_LocalAndRemote(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tachos.csv")
	require.NoError(t, os.WriteFile(p, []byte(limaCSV), 0o644))

	local, err := FileSource{Path: p}.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, local, 3)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tachos.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(limaCSV))
	}))
	defer srv.Close()

	remote, err := FileSource{Path: srv.URL + "/tachos.csv?v=2"}.Records(context.Background())
	require.NoError(t, err)
	assert.Equal(t, local, remote)

	_, err = FileSource{Path: srv.URL + "/missing.csv"}.Records(context.Background())
	assert.Error(t, err)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.csv")}.Records(context.Background())
	assert.Error(t, err)

	p := filepath.Join(t.TempDir(), "points.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	_, err = FileSource{Path: p}.Records(context.Background())
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

type staticSource struct {
	recs  []nearest.RawRecord
	err   error
	delay time.Duration
}

func (s staticSource) Records(ctx context.Context) ([]nearest.RawRecord, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.recs, s.err
}

func TestMultiSource_KeepsDeclaredOrder(t *testing.T) {
	ms := MultiSource{
		staticSource{recs: []nearest.RawRecord{{Latitude: "1", Longitude: "1"}}, delay: 20 * time.Millisecond},
		staticSource{recs: []nearest.RawRecord{{Latitude: "2", Longitude: "2"}}},
	}

	ix, err := Load(context.Background(), ms)
	require.NoError(t, err)
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, 1.0, ix.At(0).Lat)
	assert.Equal(t, "C-1", ix.At(1).ID)

	_, err = MultiSource{staticSource{err: errors.New("boom")}, staticSource{}}.Records(context.Background())
	assert.Error(t, err)
}

type flakySource struct {
	calls atomic.Int32
}

func (s *flakySource) Records(ctx context.Context) ([]nearest.RawRecord, error) {
	if s.calls.Add(1) == 1 {
		return []nearest.RawRecord{{ID: "A", Latitude: "-12.0464", Longitude: "-77.0428"}}, nil
	}
	return nil, errors.New("source down")
}

func TestHolder_ReloadKeepsSnapshotOnFailure(t *testing.T) {
	src := &flakySource{}
	h := NewHolder(src)
	assert.Equal(t, 0, h.Load().Len())

	require.NoError(t, h.Reload(context.Background()))
	first := h.Load()
	assert.Equal(t, 1, first.Len())

	assert.Error(t, h.Reload(context.Background()))
	assert.Same(t, first, h.Load())
}

func TestStartReloadLoop(t *testing.T) {
	src := &flakySource{}
	h := NewHolder(src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartReloadLoop(ctx, h, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return h.Load().Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestParseCSV_BareQuoteRowDoesNotAbortLoad(t *testing.T) {
	data := "direccion,latitud,longitud,distrito\n" +
		"Jr. Lampa 123,-12.0464,-77.0428,Lima\n" +
		"Jr. 5 \"B\",-12.05,-77.03,Lima\n" +
		"Av. Arequipa 400,-12.0500,-77.0300,Lince\n"

	recs, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, `Jr. 5 "B"`, recs[1].Label)

	ix := nearest.FromRecords(recs)
	require.Equal(t, 3, ix.Len())
	assert.Equal(t, "Lince", ix.At(2).Group)
}

func TestParseJSON_NonObjectElementDoesNotAbortLoad(t *testing.T) {
	data := `[{"lat":"-12.05","lng":"-77.03"}, 5, null, "x", {"latitude":-12.06,"longitude":-77.04,"district":"Lima"}]`

	recs, err := ParseJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, nearest.RawRecord{}, recs[1])

	ix := nearest.FromRecords(recs)
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, "C-0", ix.At(0).ID)
	assert.Equal(t, "C-1", ix.At(1).ID)
	assert.Equal(t, "Lima", ix.At(1).Group)

	_, err = ParseJSON([]byte(`{"lat":1}`))
	assert.Error(t, err)
}

// gatedSource 首次调用阻塞直到 release 关闭并返回旧数据，之后返回新数据
type gatedSource struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) Records(ctx context.Context) ([]nearest.RawRecord, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.release
		return []nearest.RawRecord{{Latitude: "1", Longitude: "1"}}, nil
	}
	return []nearest.RawRecord{{Latitude: "1", Longitude: "1"}, {Latitude: "2", Longitude: "2"}}, nil
}

func TestHolder_OverlappingReloadsInstallLatestRead(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	h := NewHolder(src)
	ctx := context.Background()

	done := make(chan error, 2)
	go func() { done <- h.Reload(ctx) }()
	<-src.entered
	go func() { done <- h.Reload(ctx) }()
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, 2, h.Load().Len())
}
