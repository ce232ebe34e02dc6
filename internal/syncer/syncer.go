// internal/syncer/syncer.go
//
// Resource synchronizer.
//
// Context
// -------
// One run syncs one site.  The site name is resolved first (from config or
// a lookup query), then each kind is processed start to finish before the
// next begins:
//
//	fetch → parse → [empty? stop] → rotate old dir → write files
//
// Output layout, relative to the filesystem root (normally the cwd):
//
//	ee/<kind>/<site>/[<group>/]<name>.<ext>
//	ee/<kind>/archive/<site>/<N>/…
//
// Failure policy
// --------------
//   - Fetch failure → that kind's report carries ErrRemoteCommandFailed;
//     the remaining kinds still run.
//   - Empty dump    → informational, no directory is touched.
//   - Filesystem    → ErrFilesystem aborts the run.  No rollback.
//
// Notes
// -----
//   - Strictly sequential.  Nothing is shared across kinds except the site
//     name and the filesystem root.
//   - No retries anywhere.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/yanizio/syncee/internal/archive"
	"github.com/yanizio/syncee/internal/config"
	"github.com/yanizio/syncee/internal/dump"
	"github.com/yanizio/syncee/internal/materialize"
	"github.com/yanizio/syncee/internal/metrics"
	"github.com/yanizio/syncee/internal/remote"
	"github.com/yanizio/syncee/internal/resource"
)

// BaseDir is the top-level output directory under the filesystem root.
const BaseDir = "ee"

var (
	// ErrRemoteCommandFailed wraps a failed fetch.
	ErrRemoteCommandFailed = errors.New("remote command failed")
	// ErrFilesystem wraps a rotate, mkdir, or write failure.
	ErrFilesystem = errors.New("filesystem error")
	// ErrSiteNotFound is returned when the site-name lookup yields nothing.
	ErrSiteNotFound = errors.New("site name not found")
)

// Synchronizer runs sync passes for one site.
type Synchronizer struct {
	site   config.Site
	fetch  remote.Fetcher
	fs     billy.Filesystem
	parser dump.Parser
	writer *materialize.Writer
	log    *zap.SugaredLogger
	debug  bool

	siteName string
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the event logger.
func WithLogger(l *zap.SugaredLogger) Option { return func(s *Synchronizer) { s.log = l } }

// WithDebug enables raw dump files at the filesystem root.
func WithDebug(on bool) Option { return func(s *Synchronizer) { s.debug = on } }

// WithCharset selects the dump repair policy.
func WithCharset(cs dump.Charset) Option {
	return func(s *Synchronizer) { s.parser = dump.Parser{Charset: cs} }
}

// New returns a Synchronizer writing below fs.
func New(site config.Site, fetch remote.Fetcher, fs billy.Filesystem, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		site:     site,
		fetch:    fetch,
		fs:       fs,
		siteName: site.SiteName,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	s.writer = materialize.New(fs, s.log)
	return s
}

// SiteName returns the resolved site name, or "" before resolution.
func (s *Synchronizer) SiteName() string { return s.siteName }

// ResolveSiteName returns the configured site name or looks it up.
func (s *Synchronizer) ResolveSiteName(ctx context.Context) (string, error) {
	if s.siteName != "" {
		return s.siteName, nil
	}

	raw, err := s.fetch.Fetch(ctx, fmt.Sprintf(resource.SiteLookup.Query, s.site.SiteID))
	if err != nil {
		s.log.Errorw("command failed", "kind", "sites", "err", err)
		return "", fmt.Errorf("%w: site lookup: %w", ErrRemoteCommandFailed, err)
	}
	name := dump.SiteName(raw)
	if name == "" {
		return "", fmt.Errorf("%w: site_id %d", ErrSiteNotFound, s.site.SiteID)
	}
	s.siteName = name
	s.log.Infow("site resolved", "site_id", s.site.SiteID, "site_name", name)
	return name, nil
}

// Run resolves the site name and syncs every kind in order.  The returned
// error is non-nil only for site resolution or filesystem failures; fetch
// failures are reported per kind.
func (s *Synchronizer) Run(ctx context.Context) ([]Report, error) {
	if _, err := s.ResolveSiteName(ctx); err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(resource.Kinds))
	for _, k := range resource.Kinds {
		rep, err := s.SyncKind(ctx, k)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// Paths returns the active and archive directories for kind.
func (s *Synchronizer) Paths(kind resource.Kind) (siteDir, archiveRoot string) {
	base := s.fs.Join(BaseDir, kind.String())
	return s.fs.Join(base, s.siteName), s.fs.Join(base, "archive", s.siteName)
}

// SyncKind runs one kind's pass.  The site name must already be resolved.
func (s *Synchronizer) SyncKind(ctx context.Context, kind resource.Kind) (Report, error) {
	rep := Report{Kind: kind, State: Fetching}
	label := kind.String()
	if s.siteName == "" {
		return rep, ErrSiteNotFound
	}

	raw, err := s.fetch.Fetch(ctx, kind.Spec().SQL(s.site.SiteID))
	if err != nil {
		rep.State = FetchFailed
		rep.Err = fmt.Errorf("%w: %s: %w", ErrRemoteCommandFailed, label, err)
		metrics.FetchErrorsTotal.WithLabelValues(label).Inc()
		s.log.Errorw("command failed", "kind", label, "err", err)
		return rep, nil
	}
	rep.State = Fetched
	rep.Bytes = len(raw)
	metrics.DumpBytes.WithLabelValues(label).Set(float64(len(raw)))
	s.log.Infow("found dump", "kind", label, "bytes", len(raw))
	if s.debug {
		s.writeDebugDump(kind, raw)
	}

	records := slices.Collect(s.parser.Parse(raw, kind))
	if len(records) == 0 {
		rep.State = Empty
		metrics.EmptyResultsTotal.WithLabelValues(label).Inc()
		s.log.Infow("nothing found", "kind", label)
		return rep, nil
	}
	rep.State = Parsed
	rep.Records = len(records)

	siteDir, archiveRoot := s.Paths(kind)
	rep.SiteDir = siteDir

	slot, err := archive.Rotate(s.fs, siteDir, archiveRoot)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %w", ErrFilesystem, err)
		return rep, rep.Err
	}
	rep.State = Rotated
	rep.Slot = slot
	if slot > 0 {
		metrics.ArchivesTotal.WithLabelValues(label).Inc()
		s.log.Infow("archived", "kind", label, "from", siteDir, "to", s.fs.Join(archiveRoot, fmt.Sprint(slot)))
	}

	n, err := s.writer.Write(siteDir, kind, slices.Values(records))
	rep.Written = n
	metrics.FilesWrittenTotal.WithLabelValues(label).Add(float64(n))
	if err != nil {
		rep.Err = fmt.Errorf("%w: %w", ErrFilesystem, err)
		return rep, rep.Err
	}
	rep.State = Materialized
	return rep, nil
}

// writeDebugDump saves raw as <site>-<kind>.txt.  Failures are logged only;
// the dump is diagnostic output.
func (s *Synchronizer) writeDebugDump(kind resource.Kind, raw []byte) {
	name := s.siteName + "-" + kind.String() + ".txt"
	if err := util.WriteFile(s.fs, name, raw, 0o644); err != nil {
		s.log.Warnw("debug dump failed", "file", name, "err", err)
		return
	}
	s.log.Debugw("wrote debug dump", "file", name, "bytes", len(raw))
}
