package peers

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RangeClient is the contract the workflow engine needs from the
// instantiation service.
type RangeClient interface {
	// CreateRange provisions an isolated cyber range from the topology
	// reference, optionally wiring in a scenario-progression engine.
	// It returns the range identifier and the trainee access endpoints.
	CreateRange(ctx context.Context, topologyRef string, sessionID int, progression string) (string, []string, error)

	// DestroyRange tears down the range. Destroying an already
	// destroyed range is reported as success by the service.
	DestroyRange(ctx context.Context, rangeID string) error
}

// HTTPRangeClient talks to the instantiation service over HTTP.
type HTTPRangeClient struct {
	baseURL string
	user    string
	client  *http.Client
	logger  *logrus.Logger
}

// NewHTTPRangeClient creates an instantiation client for the service
// at baseURL, identifying as user. A zero timeout defaults to 30s.
func NewHTTPRangeClient(baseURL, user string, timeout time.Duration, logger *logrus.Logger) *HTTPRangeClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPRangeClient{
		baseURL: baseURL,
		user:    user,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *HTTPRangeClient) CreateRange(ctx context.Context, topologyRef string, sessionID int, progression string) (string, []string, error) {
	form := url.Values{
		"user":             {c.user},
		"action":           {ActionInstantiateRange},
		"range_id":         {strconv.Itoa(sessionID)},
		"description_file": {topologyRef},
	}
	if progression != "" {
		form.Set("progression_scenario", progression)
	}
	reply, err := c.post(ctx, ActionInstantiateRange, form)
	if err != nil {
		return "", nil, err
	}
	rangeID := reply.RangeID
	if rangeID == "" {
		// Older servers echo the requested id instead of assigning one.
		rangeID = strconv.Itoa(sessionID)
	}
	c.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"range_id":   rangeID,
		"endpoints":  reply.Endpoints,
	}).Info("cyber range instantiated")
	return rangeID, reply.Endpoints, nil
}

func (c *HTTPRangeClient) DestroyRange(ctx context.Context, rangeID string) error {
	form := url.Values{
		"user":     {c.user},
		"action":   {ActionDestroyRange},
		"range_id": {rangeID},
	}
	if _, err := c.post(ctx, ActionDestroyRange, form); err != nil {
		return err
	}
	c.logger.WithField("range_id", rangeID).Info("cyber range destroyed")
	return nil
}

func (c *HTTPRangeClient) post(ctx context.Context, op string, form url.Values) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &UpstreamError{Peer: PeerInstantiation, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Peer: PeerInstantiation, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Peer: PeerInstantiation, Op: op, Err: err}
	}
	reply, err := parseEnvelope(body)
	if err != nil {
		return nil, &UpstreamError{Peer: PeerInstantiation, Op: op, Err: err}
	}
	return reply, nil
}
