package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"reflect"
	"testing"

	"k8s.io/utils/pointer"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/registry"
	"kubegems.io/hubx/pkg/types"
)

func summaryIDs(summaries []types.ModelSummary) []string {
	ids := []string{}
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestRegistryClientSearch(t *testing.T) {
	hub := newTestHub(t)
	hub.store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{ID: "acme/bert", PipelineTag: "text-classification", Library: "transformers"}}, nil)
	hub.store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{ID: "acme/gpt", PipelineTag: "text-generation", Library: "transformers"}}, nil)
	hub.store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{ID: "other/yolo", PipelineTag: "object-detection", Library: "pytorch"}}, nil)
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))

	tests := []struct {
		name   string
		query  string
		filter types.SearchFilter
		want   []string
	}{
		{name: "no filter", want: []string{"acme/bert", "acme/gpt", "other/yolo"}},
		{name: "task label", filter: types.SearchFilter{Task: "Text Classification"}, want: []string{"acme/bert"}},
		{name: "any task", filter: types.SearchFilter{Task: "All Tasks"}, want: []string{"acme/bert", "acme/gpt", "other/yolo"}},
		{name: "library", filter: types.SearchFilter{Library: "PyTorch"}, want: []string{"other/yolo"}},
		{name: "query and task", query: "acme", filter: types.SearchFilter{Task: "text-generation"}, want: []string{"acme/gpt"}},
		{name: "limit", filter: types.SearchFilter{Limit: 2}, want: []string{"acme/bert", "acme/gpt"}},
		{name: "nothing", query: "missing", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cli.Search(context.Background(), tt.query, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if ids := summaryIDs(got); !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Search() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestRegistryClientRetriesTransient(t *testing.T) {
	hub := newTestHub(t)
	hub.store.AddModel("acme/bert", map[string]string{"config.json": "{}"})
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))

	hub.faults.FailNext(registry.RouteInfo, http.StatusServiceUnavailable, 2)
	info, err := cli.GetInfo(context.Background(), "acme/bert")
	if err != nil {
		t.Fatalf("GetInfo() error = %v", err)
	}
	if info.ID != "acme/bert" || len(info.Siblings) != 1 {
		t.Errorf("GetInfo() = %+v", info)
	}
	if got := hub.faults.Count(registry.RouteInfo); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestRegistryClientRetryExhausted(t *testing.T) {
	hub := newTestHub(t)
	hub.store.AddModel("acme/bert", map[string]string{"config.json": "{}"})
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))

	hub.faults.FailNext(registry.RouteTree, http.StatusBadGateway, 10)
	_, err := cli.ListFiles(context.Background(), "acme/bert")
	if !errors.IsErrCode(err, errors.ErrCodeRequest) {
		t.Fatalf("expected request error, got %v", err)
	}
	if !errors.IsErrCode(stderrors.Unwrap(err), errors.ErrCodeTransient) {
		t.Errorf("cause = %v, want the last transient failure", stderrors.Unwrap(err))
	}
	if got := hub.faults.Count(registry.RouteTree); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestRegistryClientDroppedConnection(t *testing.T) {
	hub := newTestHub(t)
	hub.store.AddModel("acme/bert", map[string]string{"config.json": "{}"})
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))

	hub.faults.FailNext(registry.RouteSearch, 0, 1)
	got, err := cli.Search(context.Background(), "", types.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if ids := summaryIDs(got); !reflect.DeepEqual(ids, []string{"acme/bert"}) {
		t.Errorf("Search() = %v", ids)
	}
}

func TestRegistryClientErrors(t *testing.T) {
	hub := newTestHub(t)
	hub.store.AddModel("acme/bert", map[string]string{"config.json": "{}"})
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))
	ctx := context.Background()

	_, err := cli.GetInfo(ctx, "acme/missing")
	if !errors.IsErrCode(err, errors.ErrCodeRequest) {
		t.Errorf("not found: got %v", err)
	}
	if got := hub.faults.Count(registry.RouteInfo); got != 1 {
		t.Errorf("not found was retried: %d requests", got)
	}

	hub.faults.Reset()
	hub.faults.FailNext(registry.RouteInfo, http.StatusTooManyRequests, 1)
	if _, err := cli.GetInfo(ctx, "acme/bert"); !errors.IsErrCode(err, errors.ErrCodeRequest) {
		t.Errorf("429: got %v", err)
	}
	if got := hub.faults.Count(registry.RouteInfo); got != 1 {
		t.Errorf("429 was retried: %d requests", got)
	}

	hub.faults.Reset()
	if _, err := cli.GetInfo(ctx, "not-an-id"); !errors.IsErrCode(err, errors.ErrCodeRequest) {
		t.Errorf("invalid id: got %v", err)
	}
	if got := hub.faults.Count(registry.RouteInfo); got != 0 {
		t.Errorf("invalid id reached the registry")
	}
}

func TestRegistryClientCredential(t *testing.T) {
	hub := newTestHub(t)
	hub.store.AddModel("acme/private", map[string]string{"config.json": "{}"})
	hub.registry.Token = "hf_secret"
	cred := NewCredential("")
	cli := NewClient(testOptions(hub.server.URL), cred)
	ctx := context.Background()

	_, err := cli.GetInfo(ctx, "acme/private")
	if !errors.IsErrCode(err, errors.ErrCodeAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if got := hub.faults.Count(registry.RouteInfo); got != 1 {
		t.Errorf("auth failure was retried: %d requests", got)
	}

	// rotation applies to the next call
	cred.Set("hf_secret")
	if _, err := cli.GetInfo(ctx, "acme/private"); err != nil {
		t.Errorf("GetInfo() after rotation error = %v", err)
	}
	account, err := cli.Remote.WhoAmI(ctx)
	if err != nil || account.Name != "hubx" {
		t.Errorf("WhoAmI() = %v, %v", account, err)
	}

	cred.Set("hf_wrong")
	if _, err := cli.Remote.WhoAmI(ctx); !errors.IsErrCode(err, errors.ErrCodeAuth) {
		t.Errorf("WhoAmI() with a wrong token = %v", err)
	}
}

func TestRegistryClientListFiles(t *testing.T) {
	hub := newTestHub(t)
	hub.store.AddModel("acme/bert", map[string]string{
		"tokenizer/vocab.txt": "abc",
		"config.json":         "{}",
		"model.safetensors":   "0123456789",
	})
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))

	files, err := cli.ListFiles(context.Background(), "acme/bert")
	if err != nil {
		t.Fatal(err)
	}
	paths := []string{}
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	if want := []string{"config.json", "model.safetensors", "tokenizer/vocab.txt"}; !reflect.DeepEqual(paths, want) {
		t.Errorf("ListFiles() = %v, want %v", paths, want)
	}
	if files[1].Size != 10 || len(files[1].SHA256) != 64 {
		t.Errorf("model.safetensors = %+v", files[1])
	}
	if files[0].SHA256 != "" {
		t.Errorf("config.json should carry no sha256: %+v", files[0])
	}
}

func TestClientEnrich(t *testing.T) {
	hub := newTestHub(t)
	hub.store.Put(types.ModelInfo{ModelSummary: types.ModelSummary{
		ID: "acme/bert", PipelineTag: "fill-mask", Tags: []string{"bert"}, Downloads: pointer.Int64(42), Likes: pointer.Int64(3),
	}}, nil)
	cli := NewClient(testOptions(hub.server.URL), NewCredential(""))

	summaries := []types.ModelSummary{{ID: "acme/bert"}, {ID: "acme/gone"}}
	if err := cli.Enrich(context.Background(), summaries); err != nil {
		t.Fatal(err)
	}
	want := types.ModelSummary{
		ID: "acme/bert", Author: "acme", PipelineTag: "fill-mask", Tags: []string{"bert"}, Downloads: pointer.Int64(42), Likes: pointer.Int64(3),
	}
	if !reflect.DeepEqual(summaries[0], want) {
		t.Errorf("enriched = %+v, want %+v", summaries[0], want)
	}
	if !reflect.DeepEqual(summaries[1], types.ModelSummary{ID: "acme/gone"}) {
		t.Errorf("failed info should leave the summary untouched: %+v", summaries[1])
	}
}
