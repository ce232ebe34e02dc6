package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/syncee/internal/config"
	"github.com/yanizio/syncee/internal/remote"
	"github.com/yanizio/syncee/internal/resource"
)

// fakeFetcher answers queries from a fixed table and records calls.
type fakeFetcher struct {
	dumps map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, q string) ([]byte, error) {
	f.calls = append(f.calls, q)
	if f.fail[q] {
		return nil, &remote.CommandError{Command: "ssh example.com mysql", Err: errors.New("exit status 1")}
	}
	return []byte(f.dumps[q]), nil
}

const site = "default_site"

func testSite() config.Site {
	return config.Site{SSHHost: "example.com", DBName: "ee", DBUser: "bob", DBPassword: "x", SiteID: 1, SiteName: site}
}

func q(k resource.Kind) string { return k.Spec().SQL(1) }

const (
	snippetsDump = "*************************** 1. row ***************************\n" +
		"    snippet_name: welcome\n" +
		"snippet_contents: Hello <b>World</b>\n"

	templatesDump = "*************************** 1. row ***************************\n" +
		"   group_name: site\n" +
		"template_name: index\n" +
		"template_type: webpage\n" +
		"    allow_php: n\n" +
		"template_data: <h1>Home</h1>\n" +
		"<p>body</p>\n" +
		"*************************** 2. row ***************************\n" +
		"   group_name: styles\n" +
		"template_name: main\n" +
		"template_type: css\n" +
		"    allow_php: n\n" +
		"template_data: body{}\n"

	variablesDump = "*************************** 1. row ***************************\n" +
		"variable_name: phone\n" +
		"variable_data: 555-0100\n"
)

func fullFetcher() *fakeFetcher {
	return &fakeFetcher{dumps: map[string]string{
		q(resource.Templates): templatesDump,
		q(resource.Snippets):  snippetsDump,
		q(resource.Variables): variablesDump,
	}}
}

func newFS(t *testing.T) (billy.Filesystem, string) {
	t.Helper()
	root := t.TempDir()
	return osfs.New(root), root
}

func read(t *testing.T, fs billy.Filesystem, p string) string {
	t.Helper()
	b, err := util.ReadFile(fs, p)
	require.NoError(t, err, p)
	return string(b)
}

func TestSnippetsReplaceStaleDirectory(t *testing.T) {
	fs, _ := newFS(t)
	require.NoError(t, util.WriteFile(fs, "ee/snippets/default_site/welcome.html", []byte("stale"), 0o644))

	f := &fakeFetcher{dumps: map[string]string{q(resource.Snippets): snippetsDump}}
	s := New(testSite(), f, fs)

	rep, err := s.SyncKind(context.Background(), resource.Snippets)
	require.NoError(t, err)
	require.Equal(t, Materialized, rep.State)
	require.Equal(t, 1, rep.Slot)
	require.Equal(t, 1, rep.Written)

	require.Equal(t, "stale", read(t, fs, "ee/snippets/archive/default_site/1/welcome.html"))
	require.Equal(t, "Hello <b>World</b>\n", read(t, fs, "ee/snippets/default_site/welcome.html"))
}

func TestRun_AllKinds(t *testing.T) {
	fs, _ := newFS(t)
	f := fullFetcher()

	reports, err := New(testSite(), f, fs).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)

	order := []resource.Kind{reports[0].Kind, reports[1].Kind, reports[2].Kind}
	require.Equal(t, resource.Kinds, order)
	for _, r := range reports {
		require.Equal(t, Materialized, r.State, r.Kind.String())
		require.Zero(t, r.Slot, "first run has nothing to archive")
	}

	require.Equal(t, "<h1>Home</h1>\n<p>body</p>\n", read(t, fs, "ee/templates/default_site/site/index.html"))
	require.Equal(t, "body{}\n", read(t, fs, "ee/templates/default_site/styles/main.css"))
	require.Equal(t, "555-0100\n", read(t, fs, "ee/variables/default_site/phone.html"))

	_, err = fs.Stat("ee/templates/archive")
	require.True(t, os.IsNotExist(err))
}

// snapshot returns path → content for every file under dir.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out[rel] = string(b)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRun_IdempotentRerun(t *testing.T) {
	fs, root := newFS(t)

	_, err := New(testSite(), fullFetcher(), fs).Run(context.Background())
	require.NoError(t, err)
	first := map[resource.Kind]map[string]string{}
	for _, k := range resource.Kinds {
		first[k] = snapshot(t, filepath.Join(root, "ee", k.String(), site))
	}

	reports, err := New(testSite(), fullFetcher(), fs).Run(context.Background())
	require.NoError(t, err)

	for _, r := range reports {
		require.Equal(t, 1, r.Slot, r.Kind.String())

		active := snapshot(t, filepath.Join(root, "ee", r.Kind.String(), site))
		require.Equal(t, first[r.Kind], active, "active tree differs for %s", r.Kind)

		entries, err := os.ReadDir(filepath.Join(root, "ee", r.Kind.String(), "archive", site))
		require.NoError(t, err)
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		require.Equal(t, []string{"1"}, names)

		archived := snapshot(t, filepath.Join(root, "ee", r.Kind.String(), "archive", site, "1"))
		require.Equal(t, first[r.Kind], archived)
	}
}

func TestSyncKind_EmptyDumpLeavesTreeUntouched(t *testing.T) {
	fs, root := newFS(t)
	f := &fakeFetcher{dumps: map[string]string{}}

	rep, err := New(testSite(), f, fs).SyncKind(context.Background(), resource.Snippets)
	require.NoError(t, err)
	require.Equal(t, Empty, rep.State)
	require.Zero(t, rep.Bytes)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries, "no directories created for an empty dump")
}

func TestSyncKind_EmptyDumpKeepsExistingDir(t *testing.T) {
	fs, _ := newFS(t)
	require.NoError(t, util.WriteFile(fs, "ee/snippets/default_site/keep.html", []byte("keep"), 0o644))

	// Banner but no complete record.
	f := &fakeFetcher{dumps: map[string]string{
		q(resource.Snippets): "*************************** 1. row ***************************\nsnippet_name: blank\n",
	}}
	rep, err := New(testSite(), f, fs).SyncKind(context.Background(), resource.Snippets)
	require.NoError(t, err)
	require.Equal(t, Empty, rep.State)
	require.Equal(t, "keep", read(t, fs, "ee/snippets/default_site/keep.html"))

	_, err = fs.Stat("ee/snippets/archive")
	require.True(t, os.IsNotExist(err))
}

func TestRun_FetchFailureContinues(t *testing.T) {
	fs, _ := newFS(t)
	f := fullFetcher()
	f.fail = map[string]bool{q(resource.Templates): true}

	reports, err := New(testSite(), f, fs).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)

	require.Equal(t, FetchFailed, reports[0].State)
	require.True(t, errors.Is(reports[0].Err, ErrRemoteCommandFailed))
	var ce *remote.CommandError
	require.True(t, errors.As(reports[0].Err, &ce))

	require.Equal(t, Materialized, reports[1].State)
	require.Equal(t, Materialized, reports[2].State)
	require.Len(t, f.calls, 3, "no retries")

	_, err = fs.Stat("ee/templates")
	require.True(t, os.IsNotExist(err))
}

func TestRun_FilesystemErrorAborts(t *testing.T) {
	fs, _ := newFS(t)
	// A file where the templates site directory belongs.
	require.NoError(t, util.WriteFile(fs, "ee/templates/default_site", []byte("x"), 0o644))

	reports, err := New(testSite(), fullFetcher(), fs).Run(context.Background())
	require.ErrorIs(t, err, ErrFilesystem)
	require.Len(t, reports, 1, "later kinds are not attempted")
}

func TestResolveSiteName(t *testing.T) {
	fs, _ := newFS(t)
	st := testSite()
	st.SiteName = ""
	lookup := fmt.Sprintf(resource.SiteLookup.Query, 1)

	f := fullFetcher()
	f.dumps[lookup] = "*************************** 1. row ***************************\nsite_name: looked_up\n"

	s := New(st, f, fs)
	reports, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "looked_up", s.SiteName())
	require.Equal(t, lookup, f.calls[0])
	require.Equal(t, "ee/snippets/looked_up", filepath.ToSlash(reports[1].SiteDir))
	require.Equal(t, "Hello <b>World</b>\n", read(t, fs, "ee/snippets/looked_up/welcome.html"))
}

func TestResolveSiteName_Failures(t *testing.T) {
	fs, _ := newFS(t)
	st := testSite()
	st.SiteName = ""
	lookup := fmt.Sprintf(resource.SiteLookup.Query, 1)

	_, err := New(st, &fakeFetcher{fail: map[string]bool{lookup: true}}, fs).Run(context.Background())
	require.ErrorIs(t, err, ErrRemoteCommandFailed)

	_, err = New(st, &fakeFetcher{dumps: map[string]string{}}, fs).Run(context.Background())
	require.ErrorIs(t, err, ErrSiteNotFound)
}

func TestDebugDump(t *testing.T) {
	fs, _ := newFS(t)
	f := &fakeFetcher{dumps: map[string]string{q(resource.Snippets): snippetsDump}}

	_, err := New(testSite(), f, fs, WithDebug(true)).SyncKind(context.Background(), resource.Snippets)
	require.NoError(t, err)
	require.Equal(t, snippetsDump, read(t, fs, "default_site-snippets.txt"))
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{FetchFailed, Empty, Materialized} {
		require.True(t, s.Terminal(), s.String())
	}
	for _, s := range []State{Idle, Fetching, Fetched, Parsed, Rotated} {
		require.False(t, s.Terminal(), s.String())
	}
}
