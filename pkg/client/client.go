package client

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"kubegems.io/hubx/pkg/types"
)

type Client struct {
	Remote     *RegistryClient
	Inference  *Invoker
	Downloader *Downloader
}

// NewClient wires a registry client, downloader and inference invoker that
// share one credential and one http.Client.
func NewClient(opts *Options, cred *Credential) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	httpcli := &http.Client{Timeout: opts.Timeout}
	remote := &RegistryClient{
		Client:     httpcli,
		Addr:       opts.Endpoint,
		Revision:   opts.Revision,
		Credential: cred,
		Retry:      opts.Retry,
	}

	// file transfers stream large bodies, so only the dial/header phase is
	// bounded by the timeout
	transfercli := &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: opts.Timeout,
	}}
	var transferer Transferer = &HTTPTransferer{Remote: remote, Client: transfercli, Retry: opts.Retry}
	if opts.Download != nil && opts.Download.Transport == "cli" {
		transferer = &CLITransferer{Path: opts.Download.CLIPath, Endpoint: opts.Endpoint, Revision: opts.Revision, Credential: cred, Retry: opts.Retry}
	}
	downloader := &Downloader{Registry: remote, Transfer: transferer}
	if opts.Download != nil {
		downloader.Policy = opts.Download.Policy
		downloader.CheckDiskSpace = opts.Download.CheckDiskSpace
	}
	return &Client{
		Remote:     remote,
		Downloader: downloader,
		Inference: &Invoker{
			Client:     httpcli,
			Addr:       opts.InferenceEndpoint,
			Credential: cred,
		},
	}
}

func (c Client) Ping(ctx context.Context) error {
	if _, err := c.Remote.Search(ctx, "", types.SearchFilter{Limit: 1}); err != nil {
		return err
	}
	return nil
}

func (c Client) Search(ctx context.Context, query string, filter types.SearchFilter) ([]types.ModelSummary, error) {
	return c.Remote.Search(ctx, query, filter)
}

func (c Client) GetInfo(ctx context.Context, id string) (*types.ModelInfo, error) {
	return c.Remote.GetInfo(ctx, id)
}

func (c Client) ListFiles(ctx context.Context, id string) ([]types.FileRef, error) {
	return c.Remote.ListFiles(ctx, id)
}

// Enrich fills display fields missing from search summaries with info calls.
// Summaries whose info call fails are left as they were.
func (c Client) Enrich(ctx context.Context, summaries []types.ModelSummary) error {
	log := logr.FromContextOrDiscard(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(DefaultEnrichConcurrency)
	for i := range summaries {
		summary := &summaries[i]
		if summary.Downloads != nil && len(summary.Tags) > 0 {
			continue
		}
		eg.Go(func() error {
			info, err := c.Remote.GetInfo(ctx, summary.ID)
			if err != nil {
				log.Info("enrich summary", "id", summary.ID, "error", err.Error())
				return ctx.Err()
			}
			mergeSummary(summary, info.ModelSummary)
			return nil
		})
	}
	return eg.Wait()
}

func mergeSummary(into *types.ModelSummary, from types.ModelSummary) {
	if into.Author == "" {
		into.Author = from.Author
	}
	if into.PipelineTag == "" {
		into.PipelineTag = from.PipelineTag
	}
	if into.Library == "" {
		into.Library = from.Library
	}
	if len(into.Tags) == 0 {
		into.Tags = from.Tags
	}
	if into.Downloads == nil {
		into.Downloads = from.Downloads
	}
	if into.Likes == nil {
		into.Likes = from.Likes
	}
}
