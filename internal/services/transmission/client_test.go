package transmission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// fakeTransmission implements the subset of the RPC protocol used by Client
type fakeTransmission struct {
	mu       sync.Mutex
	torrents map[string]map[string]interface{}
	nextID   int64
	failures int // torrent-get calls that answer with an error before succeeding
	calls    []rpcRequest
}

type rpcRequest struct {
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments"`
	Tag       *int                   `json:"tag,omitempty"`
}

func newFakeTransmission() *fakeTransmission {
	return &fakeTransmission{torrents: map[string]map[string]interface{}{}, nextID: 1}
}

func (f *fakeTransmission) addTorrent(hash, name string, doneDate int64, files []map[string]interface{}, stats []map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrents[hash] = map[string]interface{}{
		"id":          f.nextID,
		"hashString":  hash,
		"name":        name,
		"doneDate":    doneDate,
		"percentDone": 0.5,
		"status":      4,
		"downloadDir": "/downloads",
		"files":       files,
		"fileStats":   stats,
	}
	f.nextID++
}

func (f *fakeTransmission) callsFor(method string) []rpcRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rpcRequest
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransmission) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const sessionHeader = "X-Transmission-Session-Id"
	if r.Header.Get(sessionHeader) == "" {
		w.Header().Set(sessionHeader, "session")
		w.WriteHeader(http.StatusConflict)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, req)
	result, args := f.handle(req)
	f.mu.Unlock()

	resp := map[string]interface{}{"result": result, "arguments": args}
	if req.Tag != nil {
		resp["tag"] = *req.Tag
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeTransmission) byID(id float64) map[string]interface{} {
	for _, t := range f.torrents {
		if float64(t["id"].(int64)) == id {
			return t
		}
	}
	return nil
}

func (f *fakeTransmission) handle(req rpcRequest) (string, map[string]interface{}) {
	switch req.Method {
	case "torrent-add":
		filename, _ := req.Arguments["filename"].(string)
		hash := strings.ToLower(strings.TrimPrefix(strings.SplitN(filename, "&", 2)[0], "magnet:?xt=urn:btih:"))
		if t, ok := f.torrents[hash]; ok {
			return "success", map[string]interface{}{"torrent-duplicate": map[string]interface{}{
				"id": t["id"], "hashString": strings.ToUpper(hash), "name": t["name"],
			}}
		}
		f.torrents[hash] = map[string]interface{}{"id": f.nextID, "hashString": hash, "name": "added", "doneDate": int64(0)}
		f.nextID++
		return "success", map[string]interface{}{"torrent-added": map[string]interface{}{
			"id": f.torrents[hash]["id"], "hashString": hash, "name": "added",
		}}

	case "torrent-get":
		if f.failures > 0 {
			f.failures--
			return "daemon busy", map[string]interface{}{}
		}
		torrents := []map[string]interface{}{}
		ids, filtered := req.Arguments["ids"].([]interface{})
		for hash, t := range f.torrents {
			if filtered {
				match := false
				for _, id := range ids {
					if s, ok := id.(string); ok && strings.EqualFold(s, hash) {
						match = true
					}
				}
				if !match {
					continue
				}
			}
			torrents = append(torrents, t)
		}
		return "success", map[string]interface{}{"torrents": torrents}

	case "torrent-set", "torrent-remove":
		ids, _ := req.Arguments["ids"].([]interface{})
		for _, id := range ids {
			t := f.byID(id.(float64))
			if t == nil {
				continue
			}
			if req.Method == "torrent-remove" {
				delete(f.torrents, t["hashString"].(string))
			}
		}
		return "success", map[string]interface{}{}
	}
	return "method not recognized", map[string]interface{}{}
}

func newTestClient(t *testing.T, fake *fakeTransmission) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient(&config.Config{TransmissionURL: server.URL + "/transmission/rpc"}, logger)
	require.NoError(t, err)
	client.delay = time.Millisecond
	return client
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(&config.Config{}, logrus.New())
	assert.Error(t, err)
}

func TestClient_Add(t *testing.T) {
	fake := newFakeTransmission()
	client := newTestClient(t, fake)

	hash, err := client.Add(context.Background(), "magnet:?xt=urn:btih:"+hashA+"&dn=show", "/downloads")
	require.NoError(t, err)
	assert.Equal(t, hashA, hash)

	adds := fake.callsFor("torrent-add")
	require.Len(t, adds, 1)
	assert.Equal(t, "/downloads", adds[0].Arguments["download-dir"])

	// Duplicate add reports the existing torrent
	hash, err = client.Add(context.Background(), "magnet:?xt=urn:btih:"+hashA, "/downloads")
	require.NoError(t, err)
	assert.Equal(t, hashA, hash)
}

func TestClient_Status(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "Show Folder", 0,
		[]map[string]interface{}{
			{"name": "Show Folder/Show.S01E01.mkv", "length": 100, "bytesCompleted": 50},
			{"name": "Show Folder/Show.S01E02.mkv", "length": 100, "bytesCompleted": 0},
		},
		[]map[string]interface{}{
			{"bytesCompleted": 50, "wanted": true, "priority": 0},
			{"bytesCompleted": 0, "wanted": false, "priority": 0},
		},
	)
	client := newTestClient(t, fake)

	status, err := client.Status(context.Background(), strings.ToUpper(hashA))
	require.NoError(t, err)

	assert.Equal(t, hashA, status.Hash)
	assert.Equal(t, "Show Folder", status.Name)
	assert.False(t, status.Completed())
	require.Len(t, status.Files, 2)
	assert.Equal(t, TorrentFile{Index: 0, Name: "Show Folder/Show.S01E01.mkv", Length: 100, BytesCompleted: 50, Wanted: true}, status.Files[0])
	assert.False(t, status.Files[1].Wanted)
}

func TestClient_StatusCompleted(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "Show", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix(), nil, nil)
	client := newTestClient(t, fake)

	status, err := client.Status(context.Background(), hashA)
	require.NoError(t, err)
	assert.True(t, status.Completed())
}

func TestClient_StatusNotFound(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "Show", 0, nil, nil)
	client := newTestClient(t, fake)

	_, err := client.Status(context.Background(), hashB)
	assert.ErrorIs(t, err, ErrTorrentNotFound)
	// Not found is final, the client is asked once
	assert.Len(t, fake.callsFor("torrent-get"), 1)
}

func TestClient_StatusRetriesRPCErrors(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "Show", 0, nil, nil)
	fake.failures = 2
	client := newTestClient(t, fake)

	_, err := client.Status(context.Background(), hashA)
	require.NoError(t, err)
	assert.Len(t, fake.callsFor("torrent-get"), 3)
}

func TestClient_StatusRPCExhausted(t *testing.T) {
	fake := newFakeTransmission()
	fake.failures = 10
	client := newTestClient(t, fake)

	_, err := client.Status(context.Background(), hashA)
	assert.ErrorIs(t, err, ErrRPC)
}

func TestClient_SetFiles(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "Show", 0, nil, nil)
	client := newTestClient(t, fake)

	require.NoError(t, client.SetFiles(context.Background(), hashA, []int{1}, []int{0, 2}))

	sets := fake.callsFor("torrent-set")
	require.Len(t, sets, 1)
	assert.Equal(t, []interface{}{float64(1)}, sets[0].Arguments["ids"])
	assert.Equal(t, []interface{}{float64(1)}, sets[0].Arguments["files-wanted"])
	assert.Equal(t, []interface{}{float64(0), float64(2)}, sets[0].Arguments["files-unwanted"])

	// Nothing to change, no RPC
	require.NoError(t, client.SetFiles(context.Background(), hashA, nil, nil))
	assert.Len(t, fake.callsFor("torrent-set"), 1)
}

func TestClient_Remove(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "Show", 0, nil, nil)
	client := newTestClient(t, fake)

	require.NoError(t, client.Remove(context.Background(), hashA, true))

	removes := fake.callsFor("torrent-remove")
	require.Len(t, removes, 1)
	assert.Equal(t, true, removes[0].Arguments["delete-local-data"])

	err := client.Remove(context.Background(), hashA, true)
	assert.ErrorIs(t, err, ErrTorrentNotFound)
}

func TestClient_List(t *testing.T) {
	fake := newFakeTransmission()
	fake.addTorrent(hashA, "A", 0, nil, nil)
	fake.addTorrent(hashB, "B", 0, nil, nil)
	client := newTestClient(t, fake)

	statuses, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}

func TestWebhookPayload_TorrentHash(t *testing.T) {
	p := &WebhookPayload{Hash: strings.ToUpper(hashA)}
	hash, err := p.TorrentHash()
	require.NoError(t, err)
	assert.Equal(t, hashA, hash)

	_, err = (&WebhookPayload{Hash: "nope"}).TorrentHash()
	assert.Error(t, err)
}

func TestStatusCache(t *testing.T) {
	cache := NewStatusCache(time.Minute)

	cache.Set(1, &TorrentStatus{Hash: hashA})
	cache.Set(2, &TorrentStatus{Hash: hashB})

	status, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, hashA, status.Hash)
	assert.Len(t, cache.All(), 2)

	cache.Delete(1)
	_, ok = cache.Get(1)
	assert.False(t, ok)
	assert.Len(t, cache.All(), 1)
}
