package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"repo-view/model"

	"github.com/sirupsen/logrus"
)

// Error constants
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrFetchError        = errors.New("could not obtain repository data from the API")
)

// ResponseError is a non-2xx answer from the API. Message carries the
// server's {"error": ...} text when it sent one.
type ResponseError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ResponseError) Unwrap() error {
	return e.err
}

// ErrorMessage returns the server-provided message, if any.
func (e *ResponseError) ErrorMessage() string {
	return e.Message
}

func newResponseError(resp *http.Response, body []byte) *ResponseError {
	re := &ResponseError{StatusCode: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		re.Message = payload.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		re.err = ErrNotFound
	case http.StatusUnauthorized:
		re.err = ErrUnauthorized
	case http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			re.err = ErrRateLimitExceeded
		} else {
			re.err = ErrForbidden
		}
	case http.StatusTooManyRequests:
		re.err = ErrRateLimitExceeded
	default:
		re.err = ErrFetchError
	}
	return re
}

// Client talks to the repository sharing API.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	retry      RetryPolicy
	log        *logrus.Entry
}

// NewClient returns a Client for the API rooted at baseURL. A nil
// httpClient means http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host are required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    u,
		token:      token,
		httpClient: httpClient,
		retry:      DefaultRetryPolicy,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}, nil
}

// SetRetryPolicy replaces the client's retry policy.
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(log *logrus.Entry) {
	c.log = log
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			escaped = append(escaped, url.PathEscape(s))
		}
	}
	u := *c.baseURL
	u.RawPath = ""
	return u.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	return req, nil
}

// do sends req with retries and turns non-2xx answers into *ResponseError.
// The caller closes the returned body.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	c.log.WithField("url", req.URL.String()).Debug("api request")

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newResponseError(resp, body)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}

// entry decodes one listing entry. Strings use a trailing "/" to mark
// directories; objects carry an explicit is_dir flag.
type entry model.DirectoryEntry

func (e *entry) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		e.Kind = model.KindFile
		if strings.HasSuffix(name, "/") {
			e.Kind = model.KindDirectory
			name = strings.TrimRight(name, "/")
		}
		e.Name = name
		return nil
	}

	var obj struct {
		Name  string `json:"name"`
		IsDir bool   `json:"is_dir"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("directory entry: %w", err)
	}
	e.Name = strings.TrimRight(obj.Name, "/")
	e.Kind = model.KindFile
	if obj.IsDir {
		e.Kind = model.KindDirectory
	}
	return nil
}

type contentsResponse struct {
	Username        string  `json:"username"`
	RepoUUID        string  `json:"repo_uuid"`
	RepoName        string  `json:"repo_name"`
	IsDirectory     bool    `json:"isDirectory"`
	DownloadAllowed bool    `json:"download_allowed"`
	Directory       string  `json:"directory"`
	Entries         []entry `json:"entries"`
	Filepath        string  `json:"filepath"`
	Data            string  `json:"data"`
}

// Contents fetches the entry at path inside ref. It returns (nil, nil) when
// the server answered successfully with an empty body.
func (c *Client) Contents(ctx context.Context, ref model.RepositoryRef, path string) (model.Content, error) {
	segments := append([]string{ref.Owner, ref.ID}, strings.Split(path, "/")...)
	endpoint := c.endpoint(segments...)
	if path == "" {
		endpoint += "/"
	}
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var cr contentsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("error decoding contents of %s/%s/%s: %w", ref.Owner, ref.ID, path, err)
	}

	if cr.IsDirectory {
		entries := make([]model.DirectoryEntry, 0, len(cr.Entries))
		for _, e := range cr.Entries {
			if e.Name == "" {
				continue
			}
			entries = append(entries, model.DirectoryEntry(e))
		}
		return &model.Directory{
			RepositoryName:  cr.RepoName,
			Path:            path,
			Entries:         entries,
			DownloadAllowed: cr.DownloadAllowed,
		}, nil
	}

	filepath := strings.Trim(cr.Filepath, "/")
	if filepath == "" {
		filepath = path
	}
	return &model.File{
		RepositoryName:  cr.RepoName,
		Path:            filepath,
		Data:            cr.Data,
		DownloadAllowed: cr.DownloadAllowed,
	}, nil
}

// Repositories lists the repositories of the authenticated user.
func (c *Client) Repositories(ctx context.Context) ([]model.Repository, error) {
	body, err := c.get(ctx, c.endpoint("repositories"))
	if err != nil {
		return nil, err
	}

	var repos []model.Repository
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, fmt.Errorf("error decoding repository list: %w", err)
	}
	return repos, nil
}
