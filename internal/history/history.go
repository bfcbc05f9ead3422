// Package history keeps a local log of update checks in SQLite.
//
// Every check the CLI runs is recorded with its outcome or error code. The
// log doubles as a short-lived result cache: a recent successful entry for
// the same feed source, channel and installed version can stand in for a
// network check.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "relcheck/internal/errors"
	"relcheck/internal/update"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const fileName = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	checked_at      INTEGER NOT NULL,
	repository      TEXT    NOT NULL DEFAULT '',
	source          TEXT    NOT NULL DEFAULT '',
	channel         TEXT    NOT NULL,
	current_version TEXT    NOT NULL,
	status          TEXT    NOT NULL,
	latest_version  TEXT    NOT NULL DEFAULT '',
	release_channel TEXT    NOT NULL DEFAULT '',
	download_url    TEXT    NOT NULL DEFAULT '',
	asset_name      TEXT    NOT NULL DEFAULT '',
	changelog       TEXT    NOT NULL DEFAULT '',
	error_code      TEXT    NOT NULL DEFAULT ''
);
`

// addedColumns are ALTERed into databases created before they existed.
var addedColumns = []struct{ name, ddl string }{
	{"repository", `ALTER TABLE checks ADD COLUMN repository TEXT NOT NULL DEFAULT ''`},
	{"source", `ALTER TABLE checks ADD COLUMN source TEXT NOT NULL DEFAULT ''`},
}

const indexes = `
DROP INDEX IF EXISTS idx_checks_lookup;
CREATE INDEX IF NOT EXISTS idx_checks_source_lookup
	ON checks (source, channel, current_version, checked_at);
`

// Source identifies the feed a check read. Results for one source never
// answer for another.
type Source struct {
	APIURL          string
	Owner           string
	Repo            string
	AssetPrefix     string
	AssetExtensions []string
}

// Repository returns "owner/repo".
func (s Source) Repository() string {
	return strings.TrimSpace(s.Owner) + "/" + strings.TrimSpace(s.Repo)
}

// Key is the normalized cache key of the source. Owner and repo compare
// case-insensitively, as GitHub treats them.
func (s Source) Key() string {
	exts := make([]string, 0, len(s.AssetExtensions))
	for _, ext := range s.AssetExtensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			exts = append(exts, ext)
		}
	}
	return strings.Join([]string{
		strings.TrimRight(strings.TrimSpace(s.APIURL), "/"),
		strings.ToLower(s.Repository()),
		strings.ToLower(strings.TrimSpace(s.AssetPrefix)),
		strings.Join(exts, ","),
	}, "|")
}

// StatusFailed marks an entry whose check returned an error.
const StatusFailed = "failed"

// Entry is one recorded check.
type Entry struct {
	ID             int64     `json:"id"`
	CheckedAt      time.Time `json:"checked_at"`
	Repository     string    `json:"repository,omitempty"`
	Source         string    `json:"source,omitempty"`
	Channel        string    `json:"channel"`
	CurrentVersion string    `json:"current_version"`
	Status         string    `json:"status"`
	LatestVersion  string    `json:"latest_version,omitempty"`
	ReleaseChannel string    `json:"release_channel,omitempty"`
	DownloadURL    string    `json:"download_url,omitempty"`
	AssetName      string    `json:"asset_name,omitempty"`
	Changelog      string    `json:"changelog,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
}

// Fresh reports whether the entry is a successful check younger than ttl.
// A non-positive ttl disables caching.
func (e Entry) Fresh(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || e.ErrorCode != "" || e.Status == StatusFailed {
		return false
	}
	age := now.Sub(e.CheckedAt)
	return age >= 0 && age < ttl
}

// NewEntry builds the history row for a finished check. Exactly one of
// outcome and err is meaningful, as with update.Report.
func NewEntry(src Source, channel update.Channel, current string, report update.Report, now time.Time) Entry {
	e := Entry{
		CheckedAt:      now,
		Repository:     src.Repository(),
		Source:         src.Key(),
		Channel:        channel.String(),
		CurrentVersion: current,
	}
	if report.Err != nil {
		e.Status = StatusFailed
		e.ErrorCode = string(apperrors.CodeOf(report.Err))
		return e
	}
	o := report.Outcome
	if !o.CheckedAt.IsZero() {
		e.CheckedAt = o.CheckedAt
	}
	e.Status = o.Status.String()
	if o.UpdateAvailable() {
		e.LatestVersion = o.Result.VersionName
		e.ReleaseChannel = o.Result.Channel.String()
		e.DownloadURL = o.Result.DownloadURL
		e.AssetName = o.Result.AssetName
		e.Changelog = o.Result.Changelog
	}
	return e
}

// Outcome rebuilds the check outcome a successful entry recorded.
func (e Entry) Outcome() (update.Outcome, error) {
	channel, ok := update.ParseChannel(e.Channel)
	if !ok {
		return update.Outcome{}, fmt.Errorf("history entry %d: unknown channel %q", e.ID, e.Channel)
	}
	current, err := update.ParseVersion(e.CurrentVersion)
	if err != nil {
		return update.Outcome{}, err
	}
	o := update.Outcome{
		Status:         update.StatusUpToDate,
		Channel:        channel,
		CurrentVersion: current,
		CheckedAt:      e.CheckedAt,
	}
	switch e.Status {
	case update.StatusUpToDate.String():
	case update.StatusUpdateAvailable.String():
		resultChannel := channel
		if e.ReleaseChannel == update.ChannelOther.String() {
			resultChannel = update.ChannelOther
		} else if rc, ok := update.ParseChannel(e.ReleaseChannel); ok {
			resultChannel = rc
		}
		o.Status = update.StatusUpdateAvailable
		o.Result = update.Result{
			VersionName: e.LatestVersion,
			Changelog:   e.Changelog,
			DownloadURL: e.DownloadURL,
			AssetName:   e.AssetName,
			Channel:     resultChannel,
		}
	default:
		return update.Outcome{}, fmt.Errorf("history entry %d: status %q has no outcome", e.ID, e.Status)
	}
	return o, nil
}

// Store is a SQLite-backed check log. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns ~/.relcheck/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, ".relcheck", fileName), nil
}

// buildDSN creates a read-write WAL DSN for the given path.
func buildDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, historyError("open history", errors.New("empty database path"))
	}
	//nolint:gosec // G301: per-user data directory
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, historyError("create history directory", err)
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, historyError("open history db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, historyError("ping history db", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, historyError("migrate history db", err)
	}
	return &Store{db: db, path: path}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	existing, err := columnNames(ctx, db)
	if err != nil {
		return err
	}
	for _, col := range addedColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	_, err = db.ExecContext(ctx, indexes)
	return err
}

func columnNames(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('checks')`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()
	names := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e and returns its row id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CheckedAt.IsZero() {
		e.CheckedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checks (
			checked_at, repository, source, channel, current_version, status, latest_version,
			release_channel, download_url, asset_name, changelog, error_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.CheckedAt.UnixNano(), e.Repository, e.Source, e.Channel, e.CurrentVersion, e.Status, e.LatestVersion,
		e.ReleaseChannel, e.DownloadURL, e.AssetName, e.Changelog, e.ErrorCode,
	)
	if err != nil {
		return 0, historyError("record check", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, historyError("record check", err)
	}
	return id, nil
}

const selectColumns = `
	SELECT id, checked_at, repository, source, channel, current_version, status, latest_version,
	       release_channel, download_url, asset_name, changelog, error_code
	FROM checks`

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY checked_at DESC, id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, historyError("query history", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, historyError("query history", err)
	}
	return entries, nil
}

// LastFor returns the newest successful entry for the source key, channel
// and current version. ok is false when there is none.
func (s *Store) LastFor(ctx context.Context, source, channel, current string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		WHERE source = ? AND channel = ? AND current_version = ? AND error_code = ''
		ORDER BY checked_at DESC, id DESC
		LIMIT 1
	`, source, channel, current)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		checked int64
	)
	err := sc.Scan(
		&e.ID, &checked, &e.Repository, &e.Source, &e.Channel, &e.CurrentVersion, &e.Status, &e.LatestVersion,
		&e.ReleaseChannel, &e.DownloadURL, &e.AssetName, &e.Changelog, &e.ErrorCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, historyError("scan history entry", err)
	}
	e.CheckedAt = time.Unix(0, checked)
	return e, nil
}

func historyError(msg string, err error) error {
	return apperrors.New(apperrors.CodeHistoryFailed, msg, err)
}
