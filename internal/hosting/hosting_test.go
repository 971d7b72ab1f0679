package hosting

import (
	"context"
	"testing"
)

func TestPlatformFor(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		want   string
	}{
		{"github ssh", "git@github.com:valksor/go-ablauf.git", "github"},
		{"github https", "https://github.com/valksor/go-ablauf.git", "github"},
		{"gitlab ssh", "git@gitlab.com:group/project.git", "gitlab"},
		{"gitlab https", "https://gitlab.com/group/project", "gitlab"},
		{"self-hosted gitlab", "https://gitlab.example.com/team/project.git", "gitlab"},
		{"unknown", "https://codeberg.org/owner/repo.git", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := platformFor(tt.remote); got != tt.want {
				t.Errorf("platformFor(%q) = %q, want %q", tt.remote, got, tt.want)
			}
		})
	}
}

func TestGitHubRepoPath(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"ssh", "git@github.com:valksor/go-ablauf.git", "valksor", "go-ablauf", false},
		{"https with suffix", "https://github.com/valksor/go-ablauf.git", "valksor", "go-ablauf", false},
		{"https without suffix", "https://github.com/valksor/go-ablauf", "valksor", "go-ablauf", false},
		{"trailing slash", "https://github.com/valksor/go-ablauf/", "valksor", "go-ablauf", false},
		{"not github", "git@gitlab.com:group/project.git", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := githubRepoPath(tt.remote)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("githubRepoPath(%q) expected error", tt.remote)
				}
				return
			}
			if err != nil {
				t.Fatalf("githubRepoPath(%q) returned error: %v", tt.remote, err)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("githubRepoPath(%q) = %q/%q, want %q/%q", tt.remote, owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

func TestGitLabProjectPath(t *testing.T) {
	tests := []struct {
		name     string
		remote   string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{"ssh", "git@gitlab.com:group/project.git", "gitlab.com", "group/project", false},
		{"https", "https://gitlab.com/group/project.git", "gitlab.com", "group/project", false},
		{"nested group", "https://gitlab.com/group/sub/project", "gitlab.com", "group/sub/project", false},
		{"self-hosted", "https://gitlab.example.com/team/project.git", "gitlab.example.com", "team/project", false},
		{"no project", "https://gitlab.com/single", "", "", true},
		{"not gitlab", "git@github.com:owner/repo.git", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := gitlabProjectPath(tt.remote)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("gitlabProjectPath(%q) expected error", tt.remote)
				}
				return
			}
			if err != nil {
				t.Fatalf("gitlabProjectPath(%q) returned error: %v", tt.remote, err)
			}
			if host != tt.wantHost || path != tt.wantPath {
				t.Errorf("gitlabProjectPath(%q) = %q %q, want %q %q", tt.remote, host, path, tt.wantHost, tt.wantPath)
			}
		})
	}
}

func TestPullNumber(t *testing.T) {
	num, err := pullNumber("https://github.com/valksor/go-ablauf/pull/42")
	if err != nil {
		t.Fatalf("pullNumber returned error: %v", err)
	}
	if num != 42 {
		t.Errorf("pullNumber = %d, want 42", num)
	}

	if _, err := pullNumber("https://github.com/valksor/go-ablauf"); err == nil {
		t.Error("expected error for URL without a pull number")
	}
}

func TestMergeRequestIID(t *testing.T) {
	iid, err := mergeRequestIID("https://gitlab.com/group/project/-/merge_requests/7")
	if err != nil {
		t.Fatalf("mergeRequestIID returned error: %v", err)
	}
	if iid != 7 {
		t.Errorf("mergeRequestIID = %d, want 7", iid)
	}

	if _, err := mergeRequestIID("https://gitlab.com/group/project"); err == nil {
		t.Error("expected error for URL without a merge request number")
	}
}

func TestResolveGitHubTokenPrecedence(t *testing.T) {
	t.Setenv("ABLAUF_GITHUB_TOKEN", "from-ablauf-env")
	t.Setenv("GITHUB_TOKEN", "from-github-env")

	if got := resolveGitHubToken("from-config"); got != "from-ablauf-env" {
		t.Errorf("token = %q, want ABLAUF_GITHUB_TOKEN to win", got)
	}

	t.Setenv("ABLAUF_GITHUB_TOKEN", "")
	if got := resolveGitHubToken("from-config"); got != "from-github-env" {
		t.Errorf("token = %q, want GITHUB_TOKEN next", got)
	}

	t.Setenv("GITHUB_TOKEN", "")
	if got := resolveGitHubToken("from-config"); got != "from-config" {
		t.Errorf("token = %q, want config token next", got)
	}
}

func TestResolveGitLabTokenPrecedence(t *testing.T) {
	t.Setenv("ABLAUF_GITLAB_TOKEN", "from-ablauf-env")
	t.Setenv("GITLAB_TOKEN", "from-gitlab-env")

	if got := resolveGitLabToken("from-config"); got != "from-ablauf-env" {
		t.Errorf("token = %q, want ABLAUF_GITLAB_TOKEN to win", got)
	}

	t.Setenv("ABLAUF_GITLAB_TOKEN", "")
	if got := resolveGitLabToken("from-config"); got != "from-gitlab-env" {
		t.Errorf("token = %q, want GITLAB_TOKEN next", got)
	}

	t.Setenv("GITLAB_TOKEN", "")
	if got := resolveGitLabToken("from-config"); got != "from-config" {
		t.Errorf("token = %q, want config token", got)
	}
}

func TestDescribeUnsupportedRemote(t *testing.T) {
	_, err := Describe(context.Background(), "https://codeberg.org/owner/repo.git", "https://codeberg.org/owner/repo/pulls/1", "")
	if err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}
