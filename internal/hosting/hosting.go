// Package hosting looks up pull-request metadata on the hosting platform
// after the CLI created the PR. The orchestrator treats every failure
// here as best-effort: logged, never fatal to a run.
package hosting

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v67/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/oauth2"
)

// PullRequestInfo is the platform-neutral view of a created pull request.
type PullRequestInfo struct {
	Number int
	Title  string
	State  string
	URL    string
}

// Describe fetches metadata for prURL against the platform the remote URL
// points at. The token argument comes from configuration; environment
// variables take precedence over it.
func Describe(ctx context.Context, remoteURL, prURL, token string) (*PullRequestInfo, error) {
	switch platformFor(remoteURL) {
	case "github":
		return describeGitHub(ctx, remoteURL, prURL, token)
	case "gitlab":
		return describeGitLab(ctx, remoteURL, prURL, token)
	default:
		return nil, fmt.Errorf("unsupported hosting platform for remote %s", remoteURL)
	}
}

// platformFor detects the hosting platform from a git remote URL.
func platformFor(remoteURL string) string {
	switch {
	case strings.Contains(remoteURL, "github.com"):
		return "github"
	case strings.Contains(remoteURL, "gitlab"):
		return "gitlab"
	default:
		return ""
	}
}

func describeGitHub(ctx context.Context, remoteURL, prURL, token string) (*PullRequestInfo, error) {
	owner, repo, err := githubRepoPath(remoteURL)
	if err != nil {
		return nil, err
	}
	number, err := pullNumber(prURL)
	if err != nil {
		return nil, err
	}

	var gh *github.Client
	if tok := resolveGitHubToken(token); tok != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok})
		gh = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		gh = github.NewClient(nil)
	}

	pr, _, err := gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	return &PullRequestInfo{
		Number: number,
		Title:  pr.GetTitle(),
		State:  pr.GetState(),
		URL:    pr.GetHTMLURL(),
	}, nil
}

func describeGitLab(ctx context.Context, remoteURL, prURL, token string) (*PullRequestInfo, error) {
	host, project, err := gitlabProjectPath(remoteURL)
	if err != nil {
		return nil, err
	}
	iid, err := mergeRequestIID(prURL)
	if err != nil {
		return nil, err
	}

	var options []gitlab.ClientOptionFunc
	if host != "gitlab.com" {
		options = append(options, gitlab.WithBaseURL("https://"+host+"/api/v4"))
	}
	gl, err := gitlab.NewClient(resolveGitLabToken(token), options...)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}

	mr, _, err := gl.MergeRequests.GetMergeRequest(project, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch merge request %s!%d: %w", project, iid, err)
	}

	return &PullRequestInfo{
		Number: int(iid),
		Title:  mr.Title,
		State:  mr.State,
		URL:    mr.WebURL,
	}, nil
}

// resolveGitHubToken finds the GitHub token from multiple sources.
// Priority order:
//  1. ABLAUF_GITHUB_TOKEN env var
//  2. GITHUB_TOKEN env var
//  3. configToken (from config.yaml)
//  4. gh CLI auth token (via `gh auth token`)
func resolveGitHubToken(configToken string) string {
	if tok := os.Getenv("ABLAUF_GITHUB_TOKEN"); tok != "" {
		return tok
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok
	}
	if configToken != "" {
		return configToken
	}
	return getGHCLIToken()
}

// resolveGitLabToken finds the GitLab token from multiple sources.
// Priority order:
//  1. ABLAUF_GITLAB_TOKEN env var
//  2. GITLAB_TOKEN env var
//  3. configToken (from config.yaml)
func resolveGitLabToken(configToken string) string {
	if tok := os.Getenv("ABLAUF_GITLAB_TOKEN"); tok != "" {
		return tok
	}
	if tok := os.Getenv("GITLAB_TOKEN"); tok != "" {
		return tok
	}
	return configToken
}

// getGHCLIToken attempts to get the token from the gh CLI.
func getGHCLIToken() string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// githubRepoPath parses the GitHub owner/repo from a git remote URL.
// Supports:
//   - git@github.com:owner/repo.git
//   - https://github.com/owner/repo.git
//   - https://github.com/owner/repo
func githubRepoPath(remoteURL string) (string, string, error) {
	remoteURL = strings.TrimSpace(remoteURL)

	if strings.HasPrefix(remoteURL, "git@github.com:") {
		path := strings.TrimPrefix(remoteURL, "git@github.com:")
		path = strings.TrimSuffix(path, ".git")
		parts := strings.Split(path, "/")
		if len(parts) == 2 {
			return parts[0], parts[1], nil
		}
	}

	if idx := strings.Index(remoteURL, "github.com/"); idx >= 0 {
		path := remoteURL[idx+len("github.com/"):]
		path = strings.TrimSuffix(path, ".git")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")
		if len(parts) >= 2 {
			return parts[0], parts[1], nil
		}
	}

	return "", "", fmt.Errorf("not a GitHub remote: %s", remoteURL)
}

var gitlabRemotePattern = regexp.MustCompile(`^(?:https?://|git@)([^/:]*gitlab[^/:]*)[:/](.+?)(?:\.git)?/?$`)

// gitlabProjectPath parses the host and full project path (including
// nested groups) from a GitLab remote URL.
func gitlabProjectPath(remoteURL string) (string, string, error) {
	matches := gitlabRemotePattern.FindStringSubmatch(strings.TrimSpace(remoteURL))
	if matches == nil || !strings.Contains(matches[2], "/") {
		return "", "", fmt.Errorf("not a GitLab remote: %s", remoteURL)
	}
	return matches[1], matches[2], nil
}

var pullNumberPattern = regexp.MustCompile(`/pull/(\d+)`)

// pullNumber extracts the PR number from a GitHub pull request URL.
func pullNumber(prURL string) (int, error) {
	matches := pullNumberPattern.FindStringSubmatch(prURL)
	if matches == nil {
		return 0, fmt.Errorf("no pull request number in %s", prURL)
	}
	return strconv.Atoi(matches[1])
}

var mergeRequestPattern = regexp.MustCompile(`/merge_requests/(\d+)`)

// mergeRequestIID extracts the MR IID from a GitLab merge request URL.
func mergeRequestIID(prURL string) (int64, error) {
	matches := mergeRequestPattern.FindStringSubmatch(prURL)
	if matches == nil {
		return 0, fmt.Errorf("no merge request number in %s", prURL)
	}
	return strconv.ParseInt(matches[1], 10, 64)
}
