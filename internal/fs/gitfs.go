package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GitProvider serves the tree of a git ref (branch, tag, or commit) through
// the git CLI.
type GitProvider struct {
	repoPath string
	ref      string
}

// NewGitProvider creates a GitProvider that reads from ref in the repository
// at repoPath. An empty ref means HEAD.
func NewGitProvider(repoPath, ref string) *GitProvider {
	if ref == "" {
		ref = "HEAD"
	}
	return &GitProvider{repoPath: repoPath, ref: ref}
}

// Name implements Provider.
func (g *GitProvider) Name() string { return "git" }

func (g *GitProvider) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// RequestAccess verifies that the ref resolves.
func (g *GitProvider) RequestAccess(ctx context.Context) (Grant, error) {
	if _, err := g.git(ctx, "rev-parse", "--verify", g.ref); err != nil {
		return Grant{}, newError(ErrAccessDenied, g.repoPath+"@"+g.ref, err)
	}
	abs, err := filepath.Abs(g.repoPath)
	if err != nil {
		abs = g.repoPath
	}
	return Grant{RootPath: filepath.Base(abs)}, nil
}

type treeLine struct {
	name  string
	isDir bool
	size  int64
}

// lsTree lists the immediate children of rel using the long format, which
// includes blob sizes.
func (g *GitProvider) lsTree(ctx context.Context, rel string) ([]treeLine, error) {
	args := []string{"ls-tree", "-l", g.ref}
	if rel != "" {
		args = append(args, rel+"/")
	}
	out, err := g.git(ctx, args...)
	if err != nil {
		return nil, err
	}

	var lines []treeLine
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		// Format: "<mode> <type> <hash> <size>\t<name>"
		tabIdx := strings.IndexByte(line, '\t')
		if tabIdx < 0 {
			continue
		}
		fields := strings.Fields(line[:tabIdx])
		if len(fields) < 4 {
			continue
		}
		tl := treeLine{name: BaseName(line[tabIdx+1:]), isDir: fields[1] == "tree"}
		if !tl.isDir {
			tl.size, _ = strconv.ParseInt(fields[3], 10, 64)
		}
		lines = append(lines, tl)
	}
	return lines, nil
}

// Entries implements Provider. Modification times are looked up lazily as
// the sequence is consumed.
func (g *GitProvider) Entries(ctx context.Context, rel string) (iter.Seq2[Entry, error], error) {
	if rel != "" {
		st, err := g.Stat(ctx, rel)
		if err != nil {
			return nil, err
		}
		if !st.IsDir {
			return nil, newError(ErrEnumerationFailed, rel+" is not a directory", nil)
		}
	}
	lines, err := g.lsTree(ctx, rel)
	if err != nil {
		return nil, newError(ErrEnumerationFailed, rel, err)
	}
	return func(yield func(Entry, error) bool) {
		for _, tl := range lines {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			e := Entry{
				Name:    tl.name,
				IsDir:   tl.isDir,
				Size:    tl.size,
				ModTime: g.modTime(ctx, JoinPath(rel, tl.name)),
			}
			if !yield(e, nil) {
				return
			}
		}
	}, nil
}

// ReadFile implements Provider. With a positive limit git is stopped once
// limit bytes have been read.
func (g *GitProvider) ReadFile(ctx context.Context, rel string, limit int64) ([]byte, error) {
	if rel == "" {
		return nil, newError(ErrReadFailed, "cannot read directory as file", nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", g.repoPath, "show", g.ref+":"+rel)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newError(ErrReadFailed, rel, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, newError(ErrReadFailed, rel, err)
	}

	data, readErr := readLimited(stdout, limit)
	if limit > 0 && int64(len(data)) == limit {
		cancel()
		_ = cmd.Wait()
		return data, nil
	}
	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not exist") {
			return nil, newError(ErrPathNotFound, rel, nil)
		}
		if msg != "" {
			err = errors.New(msg)
		}
		return nil, newError(ErrReadFailed, rel, err)
	}
	if readErr != nil {
		return nil, newError(ErrReadFailed, rel, readErr)
	}
	return data, nil
}

// Stat implements Provider.
func (g *GitProvider) Stat(ctx context.Context, rel string) (Entry, error) {
	if rel == "" {
		if _, err := g.git(ctx, "rev-parse", "--verify", g.ref); err != nil {
			return Entry{}, newError(ErrPathNotFound, g.ref, err)
		}
		return Entry{Name: g.ref, IsDir: true, ModTime: g.modTime(ctx, "")}, nil
	}

	out, err := g.git(ctx, "ls-tree", "-l", g.ref, rel)
	if err != nil || strings.TrimSpace(out) == "" {
		return Entry{}, newError(ErrPathNotFound, rel, err)
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 5 {
		return Entry{}, newError(ErrPathNotFound, rel, nil)
	}

	e := Entry{Name: BaseName(rel), IsDir: fields[1] == "tree", ModTime: g.modTime(ctx, rel)}
	if !e.IsDir {
		e.Size, _ = strconv.ParseInt(fields[3], 10, 64)
	}
	return e, nil
}

// Close implements Provider.
func (g *GitProvider) Close() error { return nil }

// modTime returns the commit time of the last change to rel, or the zero
// time when it cannot be determined.
func (g *GitProvider) modTime(ctx context.Context, rel string) time.Time {
	args := []string{"log", "-1", "--format=%ct", g.ref}
	if rel != "" {
		args = append(args, "--", rel)
	}
	out, err := g.git(ctx, args...)
	if err != nil {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
