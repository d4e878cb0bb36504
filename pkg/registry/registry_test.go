package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"k8s.io/utils/pointer"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

func newTestServer(t *testing.T, reg *Registry) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(reg.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, header map[string]string, into any) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestRegistryListModels(t *testing.T) {
	store := NewMemoryStore()
	store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{
		ID: "acme/bert-small", PipelineTag: "text-classification", Library: "transformers", Downloads: pointer.Int64(10),
	}}, nil)
	store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{
		ID: "acme/bert-large", PipelineTag: "fill-mask", Library: "transformers", Downloads: pointer.Int64(50),
	}}, nil)
	store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{
		ID: "other/whisper", PipelineTag: "automatic-speech-recognition", Library: "pytorch",
	}}, nil)
	srv := newTestServer(t, NewRegistry(store))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all", query: "", want: []string{"acme/bert-large", "acme/bert-small", "other/whisper"}},
		{name: "search", query: "search=BERT", want: []string{"acme/bert-large", "acme/bert-small"}},
		{name: "task", query: "pipeline_tag=text-classification", want: []string{"acme/bert-small"}},
		{name: "library", query: "library=pytorch", want: []string{"other/whisper"}},
		{name: "author", query: "author=acme&sort=downloads&direction=-1", want: []string{"acme/bert-large", "acme/bert-small"}},
		{name: "limit", query: "limit=1", want: []string{"acme/bert-large"}},
		{name: "no match", query: "search=nothing", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var summaries []types.ModelSummary
			if status := getJSON(t, srv.URL+"/api/models?"+tt.query, nil, &summaries); status != http.StatusOK {
				t.Fatalf("status = %d", status)
			}
			got := []string{}
			for _, s := range summaries {
				got = append(got, s.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryTreeAndResolve(t *testing.T) {
	store := NewMemoryStore()
	store.AddModel("acme/tiny", map[string]string{
		"config.json":          `{"a":1}`,
		"model.safetensors":    "0123456789",
		"tokenizer/vocab.txt":  "hello",
		"tokenizer/merges.txt": "world",
	})
	srv := newTestServer(t, NewRegistry(store))

	var entries []types.TreeEntry
	if status := getJSON(t, srv.URL+"/api/models/acme/tiny/tree/main?recursive=true", nil, &entries); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	paths := []string{}
	for _, e := range entries {
		paths = append(paths, e.Type+":"+e.Path)
	}
	want := []string{"file:config.json", "file:model.safetensors", "directory:tokenizer", "file:tokenizer/merges.txt", "file:tokenizer/vocab.txt"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("tree = %v, want %v", paths, want)
	}
	for _, e := range entries {
		if e.Path == "model.safetensors" && (e.LFS == nil || len(e.LFS.OID) != 64) {
			t.Errorf("expected lfs sha256 for %s, got %+v", e.Path, e.LFS)
		}
		if e.Path == "config.json" && e.LFS != nil {
			t.Errorf("config.json should not be lfs")
		}
	}

	entries = nil
	getJSON(t, srv.URL+"/api/models/acme/tiny/tree/main", nil, &entries)
	if len(entries) != 3 {
		t.Errorf("non recursive tree returned %d entries", len(entries))
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/acme/tiny/resolve/main/model.safetensors", nil)
	req.Header.Set("Range", "bytes=4-")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusPartialContent || string(body) != "456789" {
		t.Errorf("range got %d %q", resp.StatusCode, body)
	}
	if cr := resp.Header.Get("Content-Range"); cr != "bytes 4-9/10" {
		t.Errorf("Content-Range = %q", cr)
	}

	if status := getJSON(t, srv.URL+"/acme/tiny/resolve/main/missing.bin", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing file status = %d", status)
	}
	if status := getJSON(t, srv.URL+"/api/models/acme/none", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing model status = %d", status)
	}
}

func TestRegistryAuth(t *testing.T) {
	store := NewMemoryStore()
	store.AddModel("acme/tiny", map[string]string{"a.txt": "a"})
	reg := NewRegistry(store)
	reg.Token = "secret"
	srv := newTestServer(t, reg)

	if status := getJSON(t, srv.URL+"/api/models/acme/tiny", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no token status = %d", status)
	}
	if status := getJSON(t, srv.URL+"/api/models/acme/tiny", map[string]string{"Authorization": "Bearer wrong"}, nil); status != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", status)
	}
	var account types.Account
	if status := getJSON(t, srv.URL+"/api/whoami-v2", map[string]string{"Authorization": "Bearer secret"}, &account); status != http.StatusOK {
		t.Errorf("whoami status = %d", status)
	}
	if account.Name != "hubx" {
		t.Errorf("account = %+v", account)
	}
	if status := getJSON(t, srv.URL+"/healthz", nil, nil); status != http.StatusOK {
		t.Errorf("healthz status = %d", status)
	}
}

func TestFaults(t *testing.T) {
	store := NewMemoryStore()
	store.AddModel("acme/tiny", map[string]string{"a.bin": "0123456789"})
	faults := NewFaults()
	reg := NewRegistry(store)
	reg.Middlewares = []mux.MiddlewareFunc{faults.Middleware}
	srv := newTestServer(t, reg)

	faults.FailNext(RouteInfo, http.StatusBadGateway, 2)
	for i, want := range []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusOK} {
		if status := getJSON(t, srv.URL+"/api/models/acme/tiny", nil, nil); status != want {
			t.Errorf("request %d status = %d, want %d", i, status, want)
		}
	}
	if got := faults.Count(RouteInfo); got != 3 {
		t.Errorf("Count(info) = %d", got)
	}

	faults.TruncateNext(RouteResolve+":a.bin", 4, 1)
	resp, err := http.Get(srv.URL + "/acme/tiny/resolve/main/a.bin")
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err == nil || string(body) != "0123" {
		t.Errorf("truncated body = %q, err = %v", body, err)
	}
	if got := faults.Count(RouteResolve + ":a.bin"); got != 1 {
		t.Errorf("Count(resolve:a.bin) = %d", got)
	}
}

func TestRegistryInference(t *testing.T) {
	reg := NewRegistry(NewMemoryStore())
	reg.Inference = func(ctx context.Context, id string, inputs json.RawMessage) (int, []byte) {
		return http.StatusOK, []byte(`[{"label":"` + id + `","input":` + string(inputs) + `}]`)
	}
	srv := newTestServer(t, reg)

	resp, err := http.Post(srv.URL+"/models/acme/tiny", "application/json", strings.NewReader(`{"inputs":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if want := `[{"label":"acme/tiny","input":"hi"}]`; string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestDirStore(t *testing.T) {
	root := t.TempDir()
	modeldir := filepath.Join(root, "acme", "tiny")
	if err := os.MkdirAll(filepath.Join(modeldir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(modeldir, "model.bin"), []byte("weights"), 0o644)
	os.WriteFile(filepath.Join(modeldir, "sub", "config.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(modeldir, ".hidden"), []byte("x"), 0o644)
	os.MkdirAll(filepath.Join(modeldir, ".cache"), 0o755)
	os.WriteFile(filepath.Join(modeldir, ".cache", "blob"), []byte("x"), 0o644)

	store, err := NewDirStore(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	summaries, err := store.Search(ctx, "tiny", types.SearchFilter{})
	if err != nil || len(summaries) != 1 || summaries[0].ID != "acme/tiny" || summaries[0].Author != "acme" {
		t.Fatalf("Search() = %v, %v", summaries, err)
	}

	entries, err := store.ListFiles(ctx, "acme/tiny")
	if err != nil {
		t.Fatal(err)
	}
	got := []string{}
	for _, e := range entries {
		got = append(got, e.Path)
	}
	if want := []string{"model.bin", "sub", "sub/config.json"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListFiles() = %v, want %v", got, want)
	}
	if entries[0].LFS == nil || entries[0].LFS.Size != 7 || pointer.Int64Deref(entries[0].Size, -1) != 7 {
		t.Errorf("model.bin = %+v, lfs = %+v", entries[0], entries[0].LFS)
	}

	info, err := store.GetInfo(ctx, "acme/tiny")
	if err != nil {
		t.Fatal(err)
	}
	if want := []types.Sibling{{Name: "model.bin"}, {Name: "sub/config.json"}}; !reflect.DeepEqual(info.Siblings, want) {
		t.Errorf("Siblings = %v, want %v", info.Siblings, want)
	}

	if _, err := store.Open(ctx, "acme/tiny", "../../etc/passwd"); err == nil {
		t.Error("expected path escape to be rejected")
	}
	for _, hidden := range []string{".hidden", ".cache/blob", "sub/../.cache/blob"} {
		if _, err := store.Open(ctx, "acme/tiny", hidden); !errors.IsErrCode(err, errors.ErrCodeRequest) {
			t.Errorf("Open(%q) = %v, want not found", hidden, err)
		}
	}
	content, err := store.Open(ctx, "acme/tiny", "sub/config.json")
	if err != nil {
		t.Fatal(err)
	}
	content.Content.Close()
	if _, err := store.GetInfo(ctx, "acme/none"); err == nil {
		t.Error("expected not found")
	}
}
