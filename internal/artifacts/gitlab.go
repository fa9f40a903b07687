// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const (
	// TokenEnv holds a personal or project access token.
	TokenEnv = "GITLAB_TOKEN"
	// JobTokenEnv is set by GitLab for every CI job.
	JobTokenEnv = "CI_JOB_TOKEN"
	// APIURLEnv is set by GitLab to the v4 API root of the instance.
	APIURLEnv = "CI_API_V4_URL"

	privateTokenHeader = "PRIVATE-TOKEN"
	jobTokenHeader     = "JOB-TOKEN"

	defaultBaseURL = "https://gitlab.com/api/v4"
	userAgent      = "tankerci"
	perPage        = 100
	maxPages       = 10
	maxRedirects   = 10
)

var (
	// ErrJobNotFound is the sentinel error wrapped by JobNotFoundError.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnexpectedStatus is the sentinel error wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

type (
	// JobNotFoundError is returned when a pipeline has no job with the requested name.
	JobNotFoundError struct {
		ProjectID  string
		PipelineID string
		JobName    string
	}

	// StatusError reports a non-2xx API response.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// Job is a pipeline job as returned by the jobs API.
	Job struct {
		ID        int64
		Name      string
		Status    string
		Stage     string
		CreatedAt time.Time
	}

	// Token authenticates API requests. Header is PRIVATE-TOKEN or JOB-TOKEN.
	Token struct {
		Header string
		Value  string
	}

	// GitLabClient talks to the GitLab v4 jobs API.
	GitLabClient struct {
		api    *gitlab.Client
		logger *log.Logger
	}

	clientConfig struct {
		httpClient *http.Client
		baseURL    string
		token      Token
		retries    bool
		logger     *log.Logger
	}

	// ClientOption configures a GitLabClient.
	ClientOption func(*clientConfig)
)

// Error implements the error interface.
func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("no job named %q in pipeline %s of project %s", e.JobName, e.PipelineID, e.ProjectID)
}

// Unwrap returns ErrJobNotFound so callers can use errors.Is for programmatic detection.
func (e *JobNotFoundError) Unwrap() error { return ErrJobNotFound }

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %d", redactURL(e.URL), ErrUnexpectedStatus, e.StatusCode)
}

// Unwrap returns ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// TokenFromEnv picks GITLAB_TOKEN over CI_JOB_TOKEN. The zero Token means
// unauthenticated requests.
func TokenFromEnv(getenv func(string) string) Token {
	if v := getenv(TokenEnv); v != "" {
		return Token{Header: privateTokenHeader, Value: v}
	}
	if v := getenv(JobTokenEnv); v != "" {
		return Token{Header: jobTokenHeader, Value: v}
	}
	return Token{}
}

// WithHTTPClient sets a custom HTTP client. Its redirect policy is wrapped so
// tokens never follow a redirect to another host.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *clientConfig) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithBaseURL overrides the API root, e.g. a self-hosted instance or a test server.
func WithBaseURL(base string) ClientOption {
	return func(g *clientConfig) {
		if base != "" {
			g.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets the credential sent with every request.
func WithToken(t Token) ClientOption {
	return func(g *clientConfig) { g.token = t }
}

// WithoutRetries disables the client's retry of 5xx and 429 responses.
func WithoutRetries() ClientOption {
	return func(g *clientConfig) { g.retries = false }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) ClientOption {
	return func(g *clientConfig) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGitLabClient creates a client for gitlab.com unless overridden.
func NewGitLabClient(opts ...ClientOption) (*GitLabClient, error) {
	cfg := clientConfig{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		retries:    true,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	httpClient := *cfg.httpClient
	httpClient.CheckRedirect = dropTokenOnRedirect(cfg.httpClient.CheckRedirect)

	apiOpts := []gitlab.ClientOptionFunc{
		gitlab.WithBaseURL(cfg.baseURL),
		gitlab.WithHTTPClient(&httpClient),
	}
	if !cfg.retries {
		apiOpts = append(apiOpts, gitlab.WithoutRetries())
	}

	var (
		api *gitlab.Client
		err error
	)
	if cfg.token.Header == jobTokenHeader {
		api, err = gitlab.NewJobClient(cfg.token.Value, apiOpts...)
	} else {
		api, err = gitlab.NewClient(cfg.token.Value, apiOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client for %s: %w", redactURL(cfg.baseURL), err)
	}
	api.UserAgent = userAgent
	return &GitLabClient{api: api, logger: cfg.logger}, nil
}

// PipelineJobs lists the jobs of a pipeline, retried ones included, following
// pagination.
func (c *GitLabClient) PipelineJobs(ctx context.Context, projectID, pipelineID string) ([]Job, error) {
	pid, err := strconv.Atoi(pipelineID)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline id %q: %w", pipelineID, err)
	}
	opts := &gitlab.ListJobsOptions{
		ListOptions:    gitlab.ListOptions{PerPage: perPage},
		IncludeRetried: gitlab.Ptr(true),
	}

	var all []Job
	for page := 0; page < maxPages; page++ {
		c.logger.Debug("listing pipeline jobs", "project", projectID, "pipeline", pid, "page", opts.Page)
		jobs, resp, err := c.api.Jobs.ListPipelineJobs(projectID, pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, apiError("listing jobs", resp, err)
		}
		for _, j := range jobs {
			all = append(all, fromAPI(j))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// FindJob returns the most recent job named jobName in the pipeline.
func (c *GitLabClient) FindJob(ctx context.Context, projectID, pipelineID, jobName string) (Job, error) {
	jobs, err := c.PipelineJobs(ctx, projectID, pipelineID)
	if err != nil {
		return Job{}, err
	}
	job, ok := latestJob(jobs, jobName)
	if !ok {
		return Job{}, &JobNotFoundError{ProjectID: projectID, PipelineID: pipelineID, JobName: jobName}
	}
	return job, nil
}

// JobArtifacts downloads the artifact archive of a job.
func (c *GitLabClient) JobArtifacts(ctx context.Context, projectID string, jobID int64) (io.Reader, error) {
	c.logger.Debug("downloading job artifacts", "project", projectID, "job", jobID)
	archive, resp, err := c.api.Jobs.GetJobArtifacts(projectID, int(jobID), gitlab.WithContext(ctx))
	if err != nil {
		return nil, apiError("downloading artifacts", resp, err)
	}
	return archive, nil
}

func fromAPI(j *gitlab.Job) Job {
	job := Job{ID: int64(j.ID), Name: j.Name, Status: j.Status, Stage: j.Stage}
	if j.CreatedAt != nil {
		job.CreatedAt = *j.CreatedAt
	}
	return job
}

// apiError turns a non-2xx response into a *StatusError. Transport failures
// are wrapped as they are.
func apiError(op string, resp *gitlab.Response, err error) error {
	if resp != nil && resp.Response != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		reqURL := ""
		if resp.Request != nil {
			reqURL = resp.Request.URL.String()
		}
		return &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// latestJob picks the highest id among jobs named name, which is the newest
// retry of that job.
func latestJob(jobs []Job, name string) (Job, bool) {
	var (
		best  Job
		found bool
	)
	for _, j := range jobs {
		if j.Name != name {
			continue
		}
		if !found || j.ID > best.ID {
			best, found = j, true
		}
	}
	return best, found
}

// dropTokenOnRedirect keeps API tokens from leaking to redirect targets on
// other hosts, such as object storage serving the artifact archive.
func dropTokenOnRedirect(next func(*http.Request, []*http.Request) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > 0 && !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
			req.Header.Del(privateTokenHeader)
			req.Header.Del(jobTokenHeader)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}

func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
