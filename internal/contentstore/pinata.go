package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/encryption"
)

// PinataStore pins envelopes through the Pinata API and reads them back
// through a list of IPFS gateways, falling through to the next gateway on
// failure.
type PinataStore struct {
	api      *resty.Client
	gateway  *resty.Client
	gateways []string
	log      zerolog.Logger
}

// PinataConfig configures a PinataStore.
type PinataConfig struct {
	APIURL   string
	JWT      string
	Gateways []string
	Timeout  time.Duration
}

type pinRequest struct {
	PinataContent  *encryption.Envelope `json:"pinataContent"`
	PinataMetadata pinMetadata          `json:"pinataMetadata"`
	PinataOptions  pinOptions           `json:"pinataOptions"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewPinataStore creates a PinataStore.
func NewPinataStore(cfg PinataConfig, log zerolog.Logger) *PinataStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	api := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetAuthToken(cfg.JWT).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	gw := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(300 * time.Millisecond)

	gateways := make([]string, 0, len(cfg.Gateways))
	for _, g := range cfg.Gateways {
		gateways = append(gateways, strings.TrimRight(g, "/"))
	}

	return &PinataStore{
		api:      api,
		gateway:  gw,
		gateways: gateways,
		log:      log.With().Str("component", "pinata_store").Logger(),
	}
}

// Publish pins env as JSON and returns its CID.
func (s *PinataStore) Publish(ctx context.Context, name string, env *encryption.Envelope) (string, error) {
	var out pinResponse
	resp, err := s.api.R().
		SetContext(ctx).
		SetBody(pinRequest{
			PinataContent:  env,
			PinataMetadata: pinMetadata{Name: name},
			PinataOptions:  pinOptions{CIDVersion: 1},
		}).
		SetResult(&out).
		Post("/pinning/pinJSONToIPFS")
	if err != nil {
		return "", fmt.Errorf("%w: pin request: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: pin returned %d", ErrUnavailable, resp.StatusCode())
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("%w: pin response without hash", ErrUnavailable)
	}

	s.log.Info().Str("cid", out.IpfsHash).Int64("size", out.PinSize).Msg("Envelope pinned")
	return out.IpfsHash, nil
}

// Fetch tries every gateway in order and returns the first decodable envelope.
func (s *PinataStore) Fetch(ctx context.Context, handle string) (*encryption.Envelope, error) {
	if len(s.gateways) == 0 {
		return nil, fmt.Errorf("%w: no gateways configured", ErrUnavailable)
	}

	notFound := 0
	for _, gw := range s.gateways {
		resp, err := s.gateway.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			Get(gw + "/" + handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
			s.log.Warn().Err(err).Str("gateway", gw).Msg("Gateway fetch failed, trying next")
			continue
		}
		if resp.StatusCode() == http.StatusNotFound {
			notFound++
			continue
		}
		if resp.IsError() {
			s.log.Warn().Int("status", resp.StatusCode()).Str("gateway", gw).Msg("Gateway returned error, trying next")
			continue
		}

		var env encryption.Envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			s.log.Warn().Err(err).Str("gateway", gw).Msg("Gateway returned non-envelope body, trying next")
			continue
		}
		return &env, nil
	}

	if notFound == len(s.gateways) {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: all gateways failed for %s", ErrUnavailable, handle)
}
