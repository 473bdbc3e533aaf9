package main

import (
	"fmt"
	"io"

	"github.com/Sternrassler/matexport/internal/config"
	"github.com/Sternrassler/matexport/pkg/auth"
	"github.com/Sternrassler/matexport/pkg/client"
	"github.com/Sternrassler/matexport/pkg/duspot"
	"github.com/Sternrassler/matexport/pkg/insert"
	"github.com/Sternrassler/matexport/pkg/matchingmaterials"
	"github.com/Sternrassler/matexport/pkg/pagination"
)

// duspotCredentials prefers a configured token over a password login.
func (a *app) duspotCredentials() (auth.Provider, error) {
	cfg := a.cfg.Duspot
	switch {
	case cfg.Token != "":
		return auth.Static(cfg.Token), nil
	case cfg.Username != "":
		return auth.NewPasswordLogin(auth.PasswordLoginConfig{
			Source:   duspot.Name,
			LoginURL: cfg.LoginURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Cache:    a.store,
		})
	default:
		return nil, fmt.Errorf("%w: set DUSPOT_TOKEN or DUSPOT_USERNAME and DUSPOT_PASSWORD", auth.ErrNoCredentials)
	}
}

func (a *app) matchingMaterialsCredentials(prompt io.Writer) (auth.Provider, error) {
	cfg := a.cfg.MatchingMaterials
	switch cfg.Flow {
	case config.FlowStatic:
		if cfg.Token == "" {
			return nil, fmt.Errorf("%w: set MM_TOKEN", auth.ErrNoCredentials)
		}
		return auth.Static(cfg.Token), nil
	case config.FlowClientCredentials:
		return auth.NewClientCredentials(auth.ClientCredentialsConfig{
			Source:       matchingmaterials.Name,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Tenant:       cfg.Tenant,
			Scopes:       cfg.Scopes,
			Cache:        a.store,
		})
	default:
		return auth.NewDeviceCode(auth.DeviceCodeConfig{
			Source:   matchingmaterials.Name,
			ClientID: cfg.ClientID,
			Tenant:   cfg.Tenant,
			Scopes:   cfg.Scopes,
			Prompt:   auth.WriterPrompt(prompt),
			Cache:    a.store,
		})
	}
}

func (a *app) httpClient(source string, credentials auth.Provider) (*client.Client, error) {
	cfg := client.DefaultConfig(source, a.cfg.HTTP.UserAgent)
	cfg.Timeout = a.cfg.HTTP.Timeout
	cfg.MaxRetries = a.cfg.HTTP.MaxRetries
	cfg.DisableRetry = a.cfg.HTTP.MaxRetries == 0
	cfg.Credentials = credentials
	return client.New(cfg)
}

// duspotSource builds the Duspot source. concurrency of 0 keeps the
// configured value; onProgress may be nil.
func (a *app) duspotSource(concurrency int, onProgress func(fetched, total int)) (*duspot.Source, error) {
	credentials, err := a.duspotCredentials()
	if err != nil {
		return nil, err
	}
	c, err := a.httpClient(duspot.Name, credentials)
	if err != nil {
		return nil, err
	}

	pcfg := pagination.DefaultConfig()
	pcfg.MaxConcurrency = a.cfg.Duspot.Concurrency
	if concurrency > 0 {
		pcfg.MaxConcurrency = concurrency
	}
	pcfg.Timeout = a.cfg.Duspot.PageTimeout
	pcfg.OnProgress = onProgress

	return duspot.New(c, duspot.Config{BaseURL: a.cfg.Duspot.BaseURL, Pagination: pcfg}), nil
}

func (a *app) insertClient() *insert.Client {
	return insert.New(insert.Config{
		GraphQLURL: a.cfg.Insert.GraphQLURL,
		FeedURL:    a.cfg.Insert.FeedURL,
		UserAgent:  a.cfg.HTTP.UserAgent,
		Timeout:    a.cfg.HTTP.Timeout,
		MaxRetries: a.cfg.HTTP.MaxRetries,
	})
}

func (a *app) matchingMaterialsSource(prompt io.Writer) (*matchingmaterials.Source, error) {
	credentials, err := a.matchingMaterialsCredentials(prompt)
	if err != nil {
		return nil, err
	}
	c, err := a.httpClient(matchingmaterials.Name, credentials)
	if err != nil {
		return nil, err
	}
	return matchingmaterials.New(c, matchingmaterials.Config{URL: a.cfg.MatchingMaterials.URL}), nil
}
