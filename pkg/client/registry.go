package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/exp/slices"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// UserAgent is sent with every request.
var UserAgent = "hubx/dev"

// RegistryClient issues authenticated requests against a hub compatible
// registry. It holds no per-call state; the credential is read on every call.
type RegistryClient struct {
	Client     *http.Client
	Addr       string
	Revision   string
	Credential *Credential
	Retry      *RetryOptions
}

func (t *RegistryClient) Search(ctx context.Context, query string, filter types.SearchFilter) ([]types.ModelSummary, error) {
	var summaries []types.ModelSummary
	path := "/api/models"
	if values := filter.Values(query); len(values) > 0 {
		path += "?" + values.Encode()
	}
	err := retry(ctx, t.Retry, "search", func() error {
		summaries = nil
		_, err := t.request(ctx, http.MethodGet, path, nil, nil, &summaries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (t *RegistryClient) GetInfo(ctx context.Context, id string) (*types.ModelInfo, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	info := &types.ModelInfo{}
	err := retry(ctx, t.Retry, "info", func() error {
		_, err := t.request(ctx, http.MethodGet, "/api/models/"+id, nil, nil, info)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (t *RegistryClient) ListFiles(ctx context.Context, id string) ([]types.FileRef, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var entries []types.TreeEntry
	path := "/api/models/" + id + "/tree/" + url.PathEscape(t.revision()) + "?recursive=true"
	err := retry(ctx, t.Retry, "list files", func() error {
		entries = nil
		_, err := t.request(ctx, http.MethodGet, path, nil, nil, &entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	files := make([]types.FileRef, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == "directory" {
			continue
		}
		files = append(files, entry.FileRef())
	}
	slices.SortFunc(files, types.SortFileRefPath)
	return files, nil
}

func (t *RegistryClient) WhoAmI(ctx context.Context) (*types.Account, error) {
	account := &types.Account{}
	err := retry(ctx, t.Retry, "whoami", func() error {
		_, err := t.request(ctx, http.MethodGet, "/api/whoami-v2", nil, nil, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// FileURL is where the content of a file of an artifact is served.
func (t *RegistryClient) FileURL(id, path string) string {
	segments := strings.Split(path, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return t.Addr + "/" + id + "/resolve/" + url.PathEscape(t.revision()) + "/" + strings.Join(segments, "/")
}

func (t *RegistryClient) revision() string {
	if t.Revision == "" {
		return DefaultRevision
	}
	return t.Revision
}

func (t *RegistryClient) httpClient() *http.Client {
	if t.Client == nil {
		return http.DefaultClient
	}
	return t.Client
}

func (t *RegistryClient) request(ctx context.Context, method, url string, header map[string]string, body any, into any) (*http.Response, error) {
	url = t.Addr + url

	var reqbody io.Reader
	switch val := body.(type) {
	case io.Reader:
		reqbody = val
	case nil:
		reqbody = nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, errors.NewParameterInvalidError(err.Error())
		}
		reqbody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqbody)
	if err != nil {
		return nil, errors.NewParameterInvalidError(err.Error())
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if auth := t.Credential.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, errors.FromTransport(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	if into != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return nil, errors.FromTransport(err)
		}
	}
	return resp, nil
}

// decodeAPIError reads an error body. The hub answers {"error": "..."} for
// most failures; anything else is kept as plain text.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	message := strings.TrimSpace(string(raw))
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var apierr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &apierr); err == nil {
			switch {
			case apierr.Error != "":
				message = apierr.Error
			case apierr.Message != "":
				message = apierr.Message
			}
		}
	}
	return errors.FromStatus(resp.StatusCode, message)
}

// ValidateID checks the owner/name shape of an artifact identifier.
func ValidateID(id string) error {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") || strings.Contains(id, "..") {
		return errors.NewParameterInvalidError("invalid model id " + `"` + id + `"` + ", expected owner/name")
	}
	return nil
}
