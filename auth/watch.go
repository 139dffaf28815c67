package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

type credential struct {
	Username string
	Secret   string
}

// isDigest reports whether secret is a bcrypt digest rather than a plain password.
func (c credential) isDigest() bool {
	return strings.HasPrefix(c.Secret, "$2")
}

// parseCredentials reads "username:password" lines. The password may also be
// a bcrypt digest as written by htpasswd -B. Blank lines and lines starting
// with # are ignored.
func parseCredentials(r io.Reader) ([]credential, error) {
	var creds []credential

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		username, secret, found := strings.Cut(text, ":")
		if !found || username == "" {
			return nil, fmt.Errorf("line %d: expected username:password", line)
		}

		creds = append(creds, credential{Username: username, Secret: secret})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	return creds, nil
}

// LoadFile adds every credential in the password file at path and returns
// the usernames it contained.
func (g *Gate) LoadFile(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open password file: %w", err)
	}
	defer func() { _ = file.Close() }()

	creds, err := parseCredentials(file)
	if err != nil {
		return nil, fmt.Errorf("parse password file: %v: %w", path, err)
	}

	users := make(map[string]struct{}, len(creds))
	for _, c := range creds {
		if c.isDigest() {
			err = g.AddDigest(c.Username, c.Secret)
		} else {
			err = g.AddCredential(c.Username, c.Secret)
		}
		if err != nil {
			return nil, err
		}

		users[c.Username] = struct{}{}
	}

	return users, nil
}

// WatchFile loads the password file at path and re-applies it whenever it
// changes, until ctx is done. Credentials are only ever added or replaced;
// users removed from the file keep their access until restart.
func (g *Gate) WatchFile(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	users, err := g.LoadFile(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch directory: %v: %w", filepath.Dir(path), err)
	}

	g.log.Info().
		Str("path", path).
		Int("users", len(users)).
		Msg("Password File Loaded")

	go g.watch(ctx, watcher, path, users)

	return nil
}

func (g *Gate) watch(ctx context.Context, watcher *fsnotify.Watcher, path string, users map[string]struct{}) {
	defer func() { _ = watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			current, err := g.LoadFile(path)
			if err != nil {
				g.log.Error().
					Err(err).
					Str("path", path).
					Msg("Password File Reload Failed")
				continue
			}

			for username := range users {
				if _, ok := current[username]; !ok {
					g.log.Warn().
						Str("username", username).
						Msg("Removed Credential Stays Active Until Restart")
				}
			}
			users = current

			g.log.Info().
				Str("path", path).
				Int("users", len(users)).
				Msg("Password File Reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			g.log.Error().
				Err(err).
				Str("path", path).
				Msg("Password File Watch Failed")
		}
	}
}
