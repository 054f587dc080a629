package peers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContentClient is the contract the workflow engine needs from the
// content service.
type ContentClient interface {
	// ConvertAndUpload converts the referenced training material and
	// uploads it to the learning platform for the given session,
	// returning the identifiers of the created activities in order.
	ConvertAndUpload(ctx context.Context, contentRef string, sessionID int) ([]string, error)

	// Remove deletes the previously uploaded activities for the session.
	Remove(ctx context.Context, sessionID int, activityIDs []string) error
}

// HTTPContentClient talks to the content service over HTTP. Calls
// carry a bounded timeout; exceeding it surfaces as an UpstreamError.
// The client never retries — retry policy belongs to the caller.
type HTTPContentClient struct {
	baseURL string
	user    string
	client  *http.Client
	logger  *logrus.Logger
}

// NewHTTPContentClient creates a content client for the service at
// baseURL, identifying as user. A zero timeout defaults to 30s.
func NewHTTPContentClient(baseURL, user string, timeout time.Duration, logger *logrus.Logger) *HTTPContentClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPContentClient{
		baseURL: baseURL,
		user:    user,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *HTTPContentClient) ConvertAndUpload(ctx context.Context, contentRef string, sessionID int) ([]string, error) {
	form := url.Values{
		"user":             {c.user},
		"action":           {ActionUploadContent},
		"range_id":         {strconv.Itoa(sessionID)},
		"description_file": {contentRef},
	}
	reply, err := c.post(ctx, ActionUploadContent, form)
	if err != nil {
		return nil, err
	}
	if reply.ActivityID == "" {
		return nil, &UpstreamError{Peer: PeerContent, Op: ActionUploadContent,
			Err: fmt.Errorf("reply carries no activity id")}
	}
	// The service reports one id per uploaded activity, comma-separated.
	ids := strings.Split(reply.ActivityID, ",")
	c.logger.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"activity_ids": ids,
	}).Info("content uploaded to learning platform")
	return ids, nil
}

func (c *HTTPContentClient) Remove(ctx context.Context, sessionID int, activityIDs []string) error {
	form := url.Values{
		"user":        {c.user},
		"action":      {ActionRemoveContent},
		"range_id":    {strconv.Itoa(sessionID)},
		"activity_id": {strings.Join(activityIDs, ",")},
	}
	if _, err := c.post(ctx, ActionRemoveContent, form); err != nil {
		return err
	}
	c.logger.WithField("session_id", sessionID).Info("content removed from learning platform")
	return nil
}

func (c *HTTPContentClient) post(ctx context.Context, op string, form url.Values) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &UpstreamError{Peer: PeerContent, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Peer: PeerContent, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Peer: PeerContent, Op: op, Err: err}
	}
	reply, err := parseEnvelope(body)
	if err != nil {
		return nil, &UpstreamError{Peer: PeerContent, Op: op, Err: err}
	}
	return reply, nil
}
